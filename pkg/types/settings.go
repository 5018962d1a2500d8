package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Settings are the per-user preferences stored alongside the profile.
type Settings struct {
	Theme         string               `json:"theme"`
	Notifications NotificationSettings `json:"notifications"`

	// ElectricityRate is the price of one kWh in Currency.
	ElectricityRate float64 `json:"electricityRate"`
	Currency        string  `json:"currency"`

	// PeakThresholdKWH is the level above which the live feed raises alerts.
	PeakThresholdKWH float64 `json:"peakThresholdKWH"`
	// AutoCutoff turns off a high-draw appliance instead of alerting.
	AutoCutoff bool `json:"autoCutoff"`
}

// NotificationSettings controls which alerts are pushed to the user.
type NotificationSettings struct {
	PeakUsage   bool `json:"peakUsage"`
	Suggestions bool `json:"suggestions"`
}

// DefaultSettings returns fully migrated settings for a new user.
func DefaultSettings() Settings {
	s, _, _ := MigrateSettings(Settings{}, 0)
	return s
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, whether anything changed, and an error
// for versions it doesn't know about.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: what registration used to write
			if s.Theme == "" {
				s.Theme = ThemeDark
				migrated = true
			}
			if !s.Notifications.PeakUsage && !s.Notifications.Suggestions {
				s.Notifications = NotificationSettings{PeakUsage: true, Suggestions: true}
				migrated = true
			}
		case 2:
			// version 2: rate and threshold moved from the browser into settings
			if s.ElectricityRate == 0 {
				s.ElectricityRate = 8
				migrated = true
			}
			if s.PeakThresholdKWH == 0 {
				s.PeakThresholdKWH = 3.0
				migrated = true
			}
		case 3:
			// version 3: currency symbol
			if s.Currency == "" {
				s.Currency = "₹"
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}

// Validate checks user supplied settings.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("theme must be %q or %q", ThemeLight, ThemeDark)
	}
	if s.ElectricityRate <= 0 {
		return fmt.Errorf("electricity rate must be positive")
	}
	if s.PeakThresholdKWH <= 0 {
		return fmt.Errorf("peak threshold must be positive")
	}
	if s.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	return nil
}
