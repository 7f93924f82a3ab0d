package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"photo-qc-api/models"
	"photo-qc-api/utils"

	"gorm.io/gorm"
)

// SubsectionKeySet is the set of subsections a caller may operate on.
type SubsectionKeySet map[models.SubsectionKey]struct{}

func (s SubsectionKeySet) Contains(key models.SubsectionKey) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the set sorted by route then subsection.
func (s SubsectionKeySet) Keys() []models.SubsectionKey {
	keys := make([]models.SubsectionKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RouteID != keys[j].RouteID {
			return keys[i].RouteID < keys[j].RouteID
		}
		return keys[i].SubsectionID < keys[j].SubsectionID
	})
	return keys
}

// AccessService resolves per-subsection visibility from the grant allow-list.
// Results are computed on every call; grants may change between requests.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// AllowedKeys returns every subsection for admins. Everyone else gets the subsections with
// no grants plus the ones whose grant list contains email.
func (s *AccessService) AllowedKeys(ctx context.Context, email string, role models.Role) (SubsectionKeySet, error) {
	db := s.db.WithContext(ctx)

	var subsections []models.Subsection
	if err := db.Order("route_id ASC, subsection_id ASC").Find(&subsections).Error; err != nil {
		return nil, fmt.Errorf("failed to load subsections: %w", err)
	}

	allowed := make(SubsectionKeySet, len(subsections))
	if role.IsAdmin() {
		for _, sub := range subsections {
			allowed[sub.Key()] = struct{}{}
		}
		return allowed, nil
	}

	var grants []models.SubsectionAccessGrant
	if err := db.Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to load access grants: %w", err)
	}

	caller := utils.NormalizeEmail(email)
	restricted := make(map[models.SubsectionKey]bool)
	granted := make(map[models.SubsectionKey]bool)
	for _, g := range grants {
		restricted[g.Key()] = true
		if caller != "" && utils.NormalizeEmail(g.Email) == caller {
			granted[g.Key()] = true
		}
	}

	for _, sub := range subsections {
		key := sub.Key()
		if !restricted[key] || granted[key] {
			allowed[key] = struct{}{}
		}
	}
	return allowed, nil
}

// CanAccess evaluates the AllowedKeys rule for a single subsection.
func (s *AccessService) CanAccess(ctx context.Context, caller Identity, key models.SubsectionKey) (bool, error) {
	if caller.Role.IsAdmin() {
		return true, nil
	}
	var emails []string
	if err := s.db.WithContext(ctx).Model(&models.SubsectionAccessGrant{}).
		Where("route_id = ? AND subsection_id = ?", key.RouteID, key.SubsectionID).
		Pluck("email", &emails).Error; err != nil {
		return false, fmt.Errorf("failed to load access grants: %w", err)
	}
	if len(emails) == 0 {
		return true, nil
	}
	me := caller.NormalizedEmail()
	for _, e := range emails {
		if me != "" && utils.NormalizeEmail(e) == me {
			return true, nil
		}
	}
	return false, nil
}

// requireAccess is the gate in front of every read or write on a submission.
func (s *AccessService) requireAccess(ctx context.Context, caller Identity, key models.SubsectionKey) error {
	if err := caller.validate(); err != nil {
		return err
	}
	ok, err := s.CanAccess(ctx, caller, key)
	if err != nil {
		return err
	}
	if !ok {
		return authorizationError("You do not have access to subsection %s/%s", key.RouteID, key.SubsectionID)
	}
	return nil
}

// ListGrants returns the allow-list of a subsection, sorted by email.
func (s *AccessService) ListGrants(ctx context.Context, caller Identity, key models.SubsectionKey) ([]models.SubsectionAccessGrant, error) {
	if !caller.Role.IsAdmin() {
		return nil, authorizationError("Only administrators can view access grants")
	}
	db := s.db.WithContext(ctx)
	if _, err := findSubsection(db, key); err != nil {
		return nil, err
	}
	var grants []models.SubsectionAccessGrant
	if err := db.Where("route_id = ? AND subsection_id = ?", key.RouteID, key.SubsectionID).
		Order("email ASC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to load access grants: %w", err)
	}
	return grants, nil
}

// ReplaceGrants swaps the whole allow-list of a subsection in one transaction.
// An empty list reopens the subsection to everyone.
func (s *AccessService) ReplaceGrants(ctx context.Context, caller Identity, key models.SubsectionKey, emails []string) ([]models.SubsectionAccessGrant, error) {
	if !caller.Role.IsAdmin() {
		return nil, authorizationError("Only administrators can change access grants")
	}

	normalized := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, raw := range emails {
		email := utils.NormalizeEmail(raw)
		if email == "" || seen[email] {
			continue
		}
		if err := validate.Var(email, "email"); err != nil || !utils.ValidateEmail(email) {
			return nil, validationError("%q is not a valid email address", raw)
		}
		seen[email] = true
		normalized = append(normalized, email)
	}
	sort.Strings(normalized)

	now := time.Now()
	grants := make([]models.SubsectionAccessGrant, 0, len(normalized))
	for _, email := range normalized {
		grants = append(grants, models.SubsectionAccessGrant{
			RouteID:      key.RouteID,
			SubsectionID: key.SubsectionID,
			Email:        email,
			CreatedBy:    caller.NormalizedEmail(),
			CreatedAt:    now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findSubsection(tx, key); err != nil {
			return err
		}
		if err := tx.Where("route_id = ? AND subsection_id = ?", key.RouteID, key.SubsectionID).
			Delete(&models.SubsectionAccessGrant{}).Error; err != nil {
			return fmt.Errorf("failed to clear access grants: %w", err)
		}
		if len(grants) == 0 {
			return nil
		}
		if err := tx.Create(&grants).Error; err != nil {
			return fmt.Errorf("failed to save access grants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}
