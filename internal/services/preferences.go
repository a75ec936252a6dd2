package services

import (
	"fmt"

	"gorm.io/gorm"

	"kleinimg/internal/models"
)

// PreferencesService handles user preferences operations
type PreferencesService struct {
	db       *gorm.DB
	defaults models.UserPreferencesData
}

// NewPreferencesService creates a new preferences service. defaults seed the
// row on first use and fill any field the stored blob lacks.
func NewPreferencesService(db *gorm.DB, defaults models.UserPreferencesData) *PreferencesService {
	return &PreferencesService{db: db, defaults: defaults}
}

// GetPreferences gets the current user preferences
func (s *PreferencesService) GetPreferences() (*models.UserPreferencesData, error) {
	prefs, err := models.GetOrCreatePreferences(s.db, s.defaults)
	if err != nil {
		return nil, err
	}

	prefsData := prefs.GetPreferences(s.defaults)
	return &prefsData, nil
}

// UpdatePreferences applies the known keys of data. Values arrive from the
// frontend as decoded JSON, so numbers are float64.
func (s *PreferencesService) UpdatePreferences(data map[string]any) error {
	prefs, err := models.GetOrCreatePreferences(s.db, s.defaults)
	if err != nil {
		return err
	}

	currentPrefs := prefs.GetPreferences(s.defaults)

	if val, ok := data["quality"]; ok {
		quality, ok := toInt(val)
		if !ok {
			return fmt.Errorf("quality must be a number, got %T", val)
		}
		if quality < 1 || quality > 100 {
			return fmt.Errorf("quality must be between 1 and 100, got %d", quality)
		}
		currentPrefs.Quality = quality
	}

	if val, ok := data["resize_to_fit"]; ok {
		if resize, ok := val.(bool); ok {
			currentPrefs.ResizeToFit = resize
		}
	}

	if val, ok := data["convert_pngs"]; ok {
		if convert, ok := val.(bool); ok {
			currentPrefs.ConvertPNGs = convert
		}
	}

	if err := prefs.SetPreferences(currentPrefs); err != nil {
		return err
	}

	return s.db.Save(prefs).Error
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
