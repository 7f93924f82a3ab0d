package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"photo-qc-api/models"

	"github.com/google/uuid"
)

// CodeProvider supplies the short codes used in human-readable content keys.
// Uniqueness of codes within an entity is the provider's concern.
type CodeProvider interface {
	EntityCode(name string) string
	CheckpointCode(name string) string
}

// InitialsCodeProvider abbreviates names to their word initials, keeping numbers whole:
// "Pole 12" -> "P12", "Earthing Pit Cover" -> "EPC".
type InitialsCodeProvider struct {
	MaxLen int
}

func (p InitialsCodeProvider) EntityCode(name string) string {
	return initialsCode(name, p.maxLen())
}

func (p InitialsCodeProvider) CheckpointCode(name string) string {
	return initialsCode(name, p.maxLen())
}

func (p InitialsCodeProvider) maxLen() int {
	if p.MaxLen <= 0 {
		return 6
	}
	return p.MaxLen
}

func initialsCode(name string, maxLen int) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	if len(words) == 1 && !unicode.IsDigit([]rune(words[0])[0]) {
		b.WriteString(strings.ToUpper(words[0]))
	} else {
		for _, w := range words {
			runes := []rune(w)
			if unicode.IsDigit(runes[0]) {
				b.WriteString(w)
				continue
			}
			b.WriteRune(unicode.ToUpper(runes[0]))
		}
	}

	code := []rune(b.String())
	if len(code) == 0 {
		return "X"
	}
	if len(code) > maxLen {
		code = code[:maxLen]
	}
	return string(code)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func keySegment(s string) string {
	cleaned := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if cleaned == "" {
		return "_"
	}
	return cleaned
}

// contentKey builds <route>/<subsection>/<entity>-<checkpoint>-<stage>-<index>-<rand><ext>.
func contentKey(codes CodeProvider, checkpoint *models.Checkpoint, slot models.Slot, filename string) string {
	entityName := ""
	if checkpoint.Entity != nil {
		entityName = checkpoint.Entity.Name
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%s/%s-%s-%s-%d-%s%s",
		keySegment(slot.RouteID),
		keySegment(slot.SubsectionID),
		keySegment(codes.EntityCode(entityName)),
		keySegment(codes.CheckpointCode(checkpoint.Name)),
		strings.ToLower(string(slot.ExecutionStage)),
		slot.PhotoIndex,
		uuid.NewString()[:8],
		ext,
	)
}
