package models

// Favorite pins one of the user's cities, optionally with a label.
type Favorite struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_city,priority:1" json:"userId"`
	CityID string `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_city,priority:2" json:"cityId"`
	City   *City  `gorm:"foreignKey:CityID;constraint:OnDelete:CASCADE" json:"city,omitempty"`
	Label  string `json:"label"`
}
