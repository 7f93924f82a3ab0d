package models

import "strings"

// Role is the closed set of roles the QC workflow understands.
type Role string

const (
	RoleEngineer Role = "engineer"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

var roleAliases = map[string]Role{
	"engineer":       RoleEngineer,
	"field_engineer": RoleEngineer,
	"site_engineer":  RoleEngineer,
	"reviewer":       RoleReviewer,
	"qc":             RoleReviewer,
	"qc_reviewer":    RoleReviewer,
	"admin":          RoleAdmin,
	"administrator":  RoleAdmin,
	"superadmin":     RoleAdmin,
}

// NormalizeRole maps a raw role string from a token or legacy record onto Role.
// Missing or unknown values resolve to RoleReviewer.
func NormalizeRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return RoleReviewer
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanReview reports whether the role may approve or reject photos.
func (r Role) CanReview() bool {
	return r == RoleReviewer || r == RoleAdmin
}
