package enums

import (
	"fmt"
	"strings"
)

// Theme is the UI theme stored in user preferences.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

var validThemes = []Theme{ThemeSystem, ThemeLight, ThemeDark}

func (t Theme) String() string {
	return string(t)
}

func (t Theme) IsValid() bool {
	for _, candidate := range validThemes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTheme converts raw input into a Theme, case-insensitively.
func ParseTheme(value string) (Theme, error) {
	normalized := Theme(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid theme %q", value)
}
