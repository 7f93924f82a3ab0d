package services

import (
	"regexp"
	"testing"

	"photo-qc-api/models"
)

func TestInitialsCode(t *testing.T) {
	cases := map[string]string{
		"Pole 12":            "P12",
		"Earthing Pit Cover": "EPC",
		"Foundation":         "FOUNDA",
		"joint-box 7b":       "JB7b",
		"  ":                 "X",
		"12 Chamber":         "12C",
		"a b c d e f g h":    "ABCDEF",
	}
	for name, want := range cases {
		if got := initialsCode(name, 6); got != want {
			t.Errorf("initialsCode(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContentKeyLayout(t *testing.T) {
	checkpoint := &models.Checkpoint{Name: "Earthing Pit", Entity: &models.Entity{Name: "Pole 12"}}
	slot := models.Slot{RouteID: "R 1", SubsectionID: "S/1", ExecutionStage: models.StageAfter, PhotoIndex: 3}

	key := contentKey(InitialsCodeProvider{}, checkpoint, slot, "IMG_0001.JPEG")
	pattern := regexp.MustCompile(`^R_1/S_1/P12-EP-after-3-[0-9a-f-]{8}\.jpeg$`)
	if !pattern.MatchString(key) {
		t.Fatalf("unexpected key %q", key)
	}

	noExt := contentKey(InitialsCodeProvider{}, &models.Checkpoint{Name: "Top"}, slot, "capture")
	if !regexp.MustCompile(`^R_1/S_1/X-TOP-after-3-.{8}\.jpg$`).MatchString(noExt) {
		t.Fatalf("unexpected key without extension %q", noExt)
	}
}
