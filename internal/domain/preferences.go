package domain

import "time"

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Preferences guarda la apariencia y el estado minimizado de los widgets.
type Preferences struct {
	UserID    string          `json:"-"`
	Theme     string          `json:"theme"`
	Widgets   map[string]bool `json:"widgets"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:  userID,
		Theme:   ThemeSystem,
		Widgets: map[string]bool{},
	}
}

func IsValidTheme(theme string) bool {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
