package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"kleinimg/internal/common"
)

// UserPreferences represents user preferences in the database
type UserPreferences struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PreferencesJSON string    `gorm:"type:text" json:"preferences_json"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserPreferencesData represents the structured preferences data
type UserPreferencesData struct {
	Quality     int  `json:"quality"`
	ResizeToFit bool `json:"resize_to_fit"`
	ConvertPNGs bool `json:"convert_pngs"`
}

// DefaultPreferences returns default preference values
func DefaultPreferences() UserPreferencesData {
	return UserPreferencesData{
		Quality:     common.DefaultQuality,
		ResizeToFit: common.DefaultResizeToFit,
		ConvertPNGs: common.DefaultConvertPNGs,
	}
}

// GetPreferences parses the stored blob. Missing or unreadable data yields
// fallback.
func (up *UserPreferences) GetPreferences(fallback UserPreferencesData) UserPreferencesData {
	if up.PreferencesJSON == "" {
		return fallback
	}

	prefs := fallback
	if err := json.Unmarshal([]byte(up.PreferencesJSON), &prefs); err != nil {
		return fallback
	}
	return prefs
}

// SetPreferences sets the preferences data
func (up *UserPreferences) SetPreferences(prefs UserPreferencesData) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	up.PreferencesJSON = string(data)
	return nil
}

// GetOrCreatePreferences gets the global preferences row, creating it with
// defaults on first use.
func GetOrCreatePreferences(db *gorm.DB, defaults UserPreferencesData) (*UserPreferences, error) {
	var prefs UserPreferences

	result := db.First(&prefs, 1)
	if result.Error == nil {
		return &prefs, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	prefs = UserPreferences{ID: 1}
	if err := prefs.SetPreferences(defaults); err != nil {
		return nil, err
	}
	if err := db.Create(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}
