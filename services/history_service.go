package services

import (
	"context"

	"photo-qc-api/models"

	"gorm.io/gorm"
)

const defaultMaxChainDepth = 50

// HistoryService rebuilds the retake chain that ends at a submission.
type HistoryService struct {
	db       *gorm.DB
	access   *AccessService
	maxDepth int
}

func NewHistoryService(db *gorm.DB, access *AccessService, maxDepth int) *HistoryService {
	if maxDepth <= 0 {
		maxDepth = defaultMaxChainDepth
	}
	return &HistoryService{db: db, access: access, maxDepth: maxDepth}
}

// History walks resubmission_of_id backwards from submissionID and returns the attempts
// oldest first, each with its comments. The walk stops at the original attempt, at a
// repeated id, at the depth limit, or at the first ancestor the caller may not see.
func (s *HistoryService) History(ctx context.Context, caller Identity, submissionID uint) ([]models.PhotoSubmission, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var allowed SubsectionKeySet
	if !caller.Role.IsAdmin() {
		keys, err := s.access.AllowedKeys(ctx, caller.Email, caller.Role)
		if err != nil {
			return nil, err
		}
		allowed = keys
	}
	visible := func(sub *models.PhotoSubmission) bool {
		return allowed == nil || allowed.Contains(sub.SubsectionKey())
	}

	chain := make([]models.PhotoSubmission, 0, 4)
	visited := make(map[uint]bool)
	next := &submissionID
	for next != nil && len(chain) < s.maxDepth {
		id := *next
		if visited[id] {
			break
		}
		visited[id] = true

		submission, err := findSubmission(db, id)
		if err != nil {
			if len(chain) == 0 {
				return nil, err
			}
			// Dangling back-reference: keep what we have.
			break
		}
		if !visible(submission) {
			if len(chain) == 0 {
				return nil, authorizationError("You do not have access to subsection %s/%s",
					submission.RouteID, submission.SubsectionID)
			}
			break
		}
		chain = append(chain, *submission)
		next = submission.ResubmissionOfID
	}

	ids := make([]uint, len(chain))
	for i := range chain {
		ids[i] = chain[i].SubmissionID
	}
	comments, err := loadComments(db, ids)
	if err != nil {
		return nil, err
	}

	history := make([]models.PhotoSubmission, len(chain))
	for i := range chain {
		attempt := chain[len(chain)-1-i]
		attempt.Comments = comments[attempt.SubmissionID]
		history[i] = attempt
	}
	return history, nil
}
