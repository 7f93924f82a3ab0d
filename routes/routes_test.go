package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"photo-qc-api/config"
	"photo-qc-api/controllers"
	"photo-qc-api/middleware"
	"photo-qc-api/models"
	"photo-qc-api/services"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "routes-test-secret"

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "api.sqlite") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := config.RunMigrations(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seed := []interface{}{
		&models.Route{RouteID: "R1", Name: "Route one"},
		&models.Subsection{RouteID: "R1", SubsectionID: "S1", Name: "North"},
		&models.Entity{EntityID: 1, Name: "Pole 12"},
		&models.Checkpoint{CheckpointID: 5, EntityID: 1, Name: "Foundation"},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	content, err := services.NewLocalContentStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("content store: %v", err)
	}
	access := services.NewAccessService(db)
	audit := services.NewAuditService(db, access, 0)
	handlers := &controllers.Handlers{
		Lifecycle:      services.NewLifecycleService(db, access, audit, services.LifecycleDeps{Content: content}),
		Audit:          audit,
		History:        services.NewHistoryService(db, access, 0),
		Query:          services.NewQueryService(db, access, content),
		Access:         access,
		MaxUploadBytes: 1 << 20,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, handlers, testSecret)
	return router
}

func bearer(t *testing.T, email, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Email: email,
		Name:  email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func pngFile(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, auth string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "IMG_0001.png")
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = part.Write(file)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", auth)
	return req
}

func jsonRequest(t *testing.T, method, path, auth string, payload interface{}) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	return req
}

func serve(router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func submissionID(t *testing.T, out map[string]interface{}) uint {
	t.Helper()
	sub, ok := out["submission"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no submission: %v", out)
	}
	return uint(sub["submission_id"].(float64))
}

func TestHealth(t *testing.T) {
	router := newTestServer(t)
	rec, out := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("health: %d %v", rec.Code, out)
	}
}

func TestRetakeFlowOverHTTP(t *testing.T) {
	router := newTestServer(t)
	eng := bearer(t, "eng@example.com", "engineer")
	qc := bearer(t, "qc@example.com", "reviewer")
	adm := bearer(t, "admin@example.com", "admin")

	slotFields := map[string]string{
		"route_id":           "R1",
		"subsection_id":      "S1",
		"checkpoint_id":      "5",
		"execution_stage":    "Before",
		"photo_index":        "1",
		"file_original_size": "4096",
		"file_last_modified": "1700000000",
	}
	rec, out := serve(router, multipartRequest(t, "/api/v1/submissions", eng, slotFields, pngFile(t, 12)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	p1 := submissionID(t, out)

	// Same file again in the same slot is a duplicate.
	rec, out = serve(router, multipartRequest(t, "/api/v1/submissions", eng, slotFields, pngFile(t, 12)))
	if rec.Code != http.StatusConflict || out["kind"] != string(services.KindConflict) {
		t.Fatalf("duplicate: %d %v", rec.Code, out)
	}

	// Engineers cannot review.
	rec, _ = serve(router, jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/review", p1), eng,
		map[string]string{"action": "approve"}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("engineer review: %d", rec.Code)
	}

	rec, _ = serve(router, jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/review", p1), qc,
		map[string]string{"action": "nc"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rejection without comment: %d", rec.Code)
	}

	rec, _ = serve(router, jsonRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/review", p1), qc,
		map[string]string{"action": "nc", "comment": "blurry"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("review: %d %s", rec.Code, rec.Body.String())
	}

	rec, out = serve(router, multipartRequest(t, fmt.Sprintf("/api/v1/submissions/%d/resubmit", p1), eng,
		map[string]string{"comment": "retaken, focused", "file_original_size": "5000", "file_last_modified": "1700000100"},
		pngFile(t, 14)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("resubmit: %d %s", rec.Code, rec.Body.String())
	}
	p2 := submissionID(t, out)

	rec, out = serve(router, jsonRequest(t, http.MethodPost, "/api/v1/submissions/review-batch", qc,
		map[string]interface{}{"submission_ids": []uint{p1, p2}, "action": "approve"}))
	if rec.Code != http.StatusOK || out["partial"] != true {
		t.Fatalf("batch: %d %v", rec.Code, out)
	}

	rec, _ = serve(router, jsonRequest(t, http.MethodDelete, fmt.Sprintf("/api/v1/submissions/%d", p2), qc, nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reviewer delete: %d", rec.Code)
	}
	rec, _ = serve(router, jsonRequest(t, http.MethodDelete, fmt.Sprintf("/api/v1/submissions/%d", p1), adm, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete superseded: %d", rec.Code)
	}

	rec, out = serve(router, jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d/history", p2), eng, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	history := out["history"].([]interface{})
	if len(history) != 2 || uint(history[0].(map[string]interface{})["submission_id"].(float64)) != p1 {
		t.Fatalf("unexpected history %v", history)
	}

	rec, out = serve(router, jsonRequest(t, http.MethodGet, "/api/v1/submissions?latest=true", eng, nil))
	if rec.Code != http.StatusOK || out["total"].(float64) != 1 {
		t.Fatalf("list latest: %d %v", rec.Code, out)
	}

	rec, _ = serve(router, jsonRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d/content", p2), eng, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("content: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestGrantAdministrationOverHTTP(t *testing.T) {
	router := newTestServer(t)
	adm := bearer(t, "admin@example.com", "admin")
	eng := bearer(t, "b@x.com", "engineer")
	path := "/api/v1/admin/routes/R1/subsections/S1/grants"

	rec, _ := serve(router, jsonRequest(t, http.MethodPut, path, eng, map[string]interface{}{"emails": []string{"b@x.com"}}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin grant edit: %d", rec.Code)
	}

	rec, out := serve(router, jsonRequest(t, http.MethodPut, path, adm, map[string]interface{}{"emails": []string{"A@X.com"}}))
	if rec.Code != http.StatusOK || out["restricted"] != true {
		t.Fatalf("replace grants: %d %v", rec.Code, out)
	}

	rec, out = serve(router, jsonRequest(t, http.MethodGet, "/api/v1/me/subsections", eng, nil))
	if rec.Code != http.StatusOK || out["total"].(float64) != 0 {
		t.Fatalf("b@x.com should see no subsections: %d %v", rec.Code, out)
	}

	rec, out = serve(router, jsonRequest(t, http.MethodGet, "/api/v1/me/subsections", bearer(t, "a@x.com", "engineer"), nil))
	if rec.Code != http.StatusOK || out["total"].(float64) != 1 {
		t.Fatalf("a@x.com should see R1/S1: %d %v", rec.Code, out)
	}

	rec, out = serve(router, jsonRequest(t, http.MethodPut, path, adm, map[string]interface{}{"emails": []string{}}))
	if rec.Code != http.StatusOK || out["restricted"] != false {
		t.Fatalf("clear grants: %d %v", rec.Code, out)
	}
}

func TestUnknownRouteAndBadIDs(t *testing.T) {
	router := newTestServer(t)
	eng := bearer(t, "eng@example.com", "engineer")

	rec, _ := serve(router, jsonRequest(t, http.MethodGet, "/api/v1/submissions/abc", eng, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	rec, _ = serve(router, jsonRequest(t, http.MethodGet, "/api/v1/submissions/999", eng, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing submission: %d", rec.Code)
	}
	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", rec.Code)
	}
	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", rec.Code)
	}
}
