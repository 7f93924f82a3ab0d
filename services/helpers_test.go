package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"photo-qc-api/config"
	"photo-qc-api/models"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	checkpointFoundation uint = 5
	checkpointEarthing   uint = 6
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "qc.sqlite") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.RunMigrations(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seedCatalog(t, db)
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	rows := []interface{}{
		&[]models.Route{{RouteID: "R1", Name: "Route one"}, {RouteID: "R2", Name: "Route two"}},
		&[]models.Subsection{
			{RouteID: "R1", SubsectionID: "S1", Name: "North"},
			{RouteID: "R1", SubsectionID: "S2", Name: "South"},
			{RouteID: "R2", SubsectionID: "S1", Name: "East"},
		},
		&models.Entity{EntityID: 1, Name: "Pole 12"},
		&[]models.Checkpoint{
			{CheckpointID: checkpointFoundation, EntityID: 1, Name: "Foundation"},
			{CheckpointID: checkpointEarthing, EntityID: 1, Name: "Earthing"},
		},
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
}

type memoryContentStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
	deleted []string
}

func newMemoryContentStore() *memoryContentStore {
	return &memoryContentStore{objects: make(map[string][]byte)}
}

func (m *memoryContentStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	m.objects[key] = append([]byte(nil), data...)
	return "/uploads/" + key, nil
}

func (m *memoryContentStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *memoryContentStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryContentStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []SubmissionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event SubmissionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyRejected(_ context.Context, submission *models.PhotoSubmission, comment string) error {
	n.calls = append(n.calls, fmt.Sprintf("%d:%s", submission.SubmissionID, comment))
	return nil
}

type testEnv struct {
	db        *gorm.DB
	access    *AccessService
	audit     *AuditService
	lifecycle *LifecycleService
	history   *HistoryService
	query     *QueryService
	content   *memoryContentStore
	events    *recordingPublisher
	notifier  *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	env := &testEnv{
		db:       db,
		content:  newMemoryContentStore(),
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	env.access = NewAccessService(db)
	env.audit = NewAuditService(db, env.access, 0)
	env.lifecycle = NewLifecycleService(db, env.access, env.audit, LifecycleDeps{
		Content:  env.content,
		Events:   env.events,
		Notifier: env.notifier,
	})
	env.history = NewHistoryService(db, env.access, 0)
	env.query = NewQueryService(db, env.access, env.content)
	return env
}

func engineer(email string) Identity {
	return Identity{Email: email, DisplayName: "Field Engineer", Role: models.RoleEngineer}
}

func reviewer(email string) Identity {
	return Identity{Email: email, DisplayName: "QC Reviewer", Role: models.RoleReviewer}
}

func admin() Identity {
	return Identity{Email: "admin@example.com", DisplayName: "Admin", Role: models.RoleAdmin}
}

// pngBytes renders a small image; size varies the encoded bytes.
func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		img.Set(x, x, color.RGBA{R: uint8(x), G: 80, B: 160, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func photo(t *testing.T, size int, originalSize, lastModified int64) PhotoUpload {
	t.Helper()
	return PhotoUpload{
		Filename:    fmt.Sprintf("IMG_%d.png", size),
		Data:        pngBytes(t, size),
		Fingerprint: models.Fingerprint{OriginalSize: originalSize, LastModified: lastModified},
	}
}

func slotFor(route, subsection string, checkpoint uint, index int) models.Slot {
	return models.Slot{
		RouteID:        route,
		SubsectionID:   subsection,
		CheckpointID:   checkpoint,
		ExecutionStage: models.StageBefore,
		PhotoIndex:     index,
	}
}

func mustSubmit(t *testing.T, env *testEnv, caller Identity, slot models.Slot, upload PhotoUpload) *models.PhotoSubmission {
	t.Helper()
	sub, err := env.lifecycle.Submit(context.Background(), caller, SubmitInput{Slot: slot, Photo: upload})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return sub
}

func mustReview(t *testing.T, env *testEnv, id uint, action, comment string) *models.PhotoSubmission {
	t.Helper()
	sub, err := env.lifecycle.Review(context.Background(), reviewer("qc@example.com"),
		ReviewInput{SubmissionID: id, Action: action, Comment: comment})
	if err != nil {
		t.Fatalf("review %d %s: %v", id, action, err)
	}
	return sub
}

func mustResubmit(t *testing.T, env *testEnv, caller Identity, previous uint, upload PhotoUpload, comment string) *models.PhotoSubmission {
	t.Helper()
	sub, err := env.lifecycle.Resubmit(context.Background(), caller,
		ResubmitInput{PreviousID: previous, Photo: upload, Comment: comment})
	if err != nil {
		t.Fatalf("resubmit %d: %v", previous, err)
	}
	return sub
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
