package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPPurpose scopes a one-time code. A code issued for one purpose can never
// satisfy a verification for another.
type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// Valid reports whether p is one of the known purposes.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeLogin, OTPPurposePasswordReset:
		return true
	}
	return false
}

// OneTimeCode is a single issued code. Only the bcrypt hash of the code is
// stored. Used moves from false to true exactly once and never back.
type OneTimeCode struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string     `gorm:"type:uuid;not null;index:idx_otp_lookup,priority:1" json:"user_id"`
	CodeHash  string     `gorm:"not null" json:"-"`
	Purpose   OTPPurpose `gorm:"size:32;not null;index:idx_otp_lookup,priority:2" json:"purpose"`
	Used      bool       `gorm:"not null;default:false;index:idx_otp_lookup,priority:3" json:"used"`
	UsedAt    *time.Time `gorm:"index" json:"used_at,omitempty"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time  `gorm:"not null;index:idx_otp_lookup,priority:4" json:"created_at"`
}

func (OneTimeCode) TableName() string {
	return "one_time_codes"
}

func (c *OneTimeCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
