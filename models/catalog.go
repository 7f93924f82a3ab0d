package models

// Route is a top-level checklist route (for example a cable run or survey line).
type Route struct {
	RouteID string `gorm:"primaryKey;column:route_id" json:"route_id"`
	Name    string `gorm:"column:name" json:"name"`
}

// Subsection is a stretch of a route. Access grants and reviews are scoped to it.
type Subsection struct {
	RouteID      string `gorm:"primaryKey;column:route_id" json:"route_id"`
	SubsectionID string `gorm:"primaryKey;column:subsection_id" json:"subsection_id"`
	Name         string `gorm:"column:name" json:"name"`
}

// Entity is the physical thing being inspected at a checkpoint (pole, joint, chamber...).
type Entity struct {
	EntityID uint   `gorm:"primaryKey;column:entity_id" json:"entity_id"`
	Name     string `gorm:"column:name" json:"name"`
}

// Checkpoint is one checklist item that requires photos.
type Checkpoint struct {
	CheckpointID uint   `gorm:"primaryKey;column:checkpoint_id" json:"checkpoint_id"`
	EntityID     uint   `gorm:"column:entity_id" json:"entity_id"`
	Name         string `gorm:"column:name" json:"name"`

	// Relations
	Entity *Entity `gorm:"foreignKey:EntityID;references:EntityID" json:"entity,omitempty"`
}

// TableName overrides
func (Route) TableName() string {
	return "routes"
}

func (Subsection) TableName() string {
	return "subsections"
}

func (Entity) TableName() string {
	return "entities"
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}

// SubsectionKey identifies a subsection across routes.
type SubsectionKey struct {
	RouteID      string `json:"route_id"`
	SubsectionID string `json:"subsection_id"`
}

func (s Subsection) Key() SubsectionKey {
	return SubsectionKey{RouteID: s.RouteID, SubsectionID: s.SubsectionID}
}
