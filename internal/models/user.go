package models

// Temperature and wind speed display units.
const (
	TempUnitFahrenheit = "F"
	TempUnitCelsius    = "C"

	WindUnitMPH = "mph"
	WindUnitKMH = "kmh"
)

// User is a registered account. Email is unique and compared exactly as stored.
type User struct {
	BaseModel

	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Location string `gorm:"not null;default:''" json:"location"`
	TempUnit string `gorm:"size:1;not null;default:F" json:"tempUnit"`
	WindUnit string `gorm:"size:3;not null;default:mph" json:"windUnit"`
}

// ValidTempUnit reports whether unit is an accepted temperature unit.
func ValidTempUnit(unit string) bool {
	return unit == TempUnitFahrenheit || unit == TempUnitCelsius
}

// ValidWindUnit reports whether unit is an accepted wind speed unit.
func ValidWindUnit(unit string) bool {
	return unit == WindUnitMPH || unit == WindUnitKMH
}
