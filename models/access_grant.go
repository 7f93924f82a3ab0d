package models

import "time"

// SubsectionAccessGrant restricts a subsection to the listed emails. A subsection with
// no grants is open to every authenticated user.
type SubsectionAccessGrant struct {
	GrantID      uint      `gorm:"primaryKey;column:grant_id" json:"grant_id"`
	RouteID      string    `gorm:"column:route_id" json:"route_id"`
	SubsectionID string    `gorm:"column:subsection_id" json:"subsection_id"`
	Email        string    `gorm:"column:email" json:"email"`
	CreatedBy    string    `gorm:"column:created_by" json:"created_by"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SubsectionAccessGrant) TableName() string {
	return "subsection_access_grants"
}

func (g SubsectionAccessGrant) Key() SubsectionKey {
	return SubsectionKey{RouteID: g.RouteID, SubsectionID: g.SubsectionID}
}
