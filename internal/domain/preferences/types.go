package preferences

type UserPreferencesData struct {
	Quality     int  `json:"quality"`
	ResizeToFit bool `json:"resize_to_fit"`
	ConvertPNGs bool `json:"convert_pngs"`
}

type Repository interface {
	GetPreferences() (*UserPreferencesData, error)
	UpdatePreferences(data map[string]any) error
}
