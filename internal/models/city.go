package models

// City is a place a user tracks weather for.
type City struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"userId"`
	Name   string `gorm:"not null" json:"name"`
}
