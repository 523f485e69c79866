package model

import (
	"fmt"
	"time"
)

// SettingsID is the id of the only Settings record.
const SettingsID = "app"

// Settings holds application preferences. There is exactly one record.
type Settings struct {
	ID            string    `json:"id"`
	Theme         string    `json:"theme"`
	Language      string    `json:"language"`
	FontSize      int       `json:"font_size"`
	WeekStart     string    `json:"week_start"`
	Timezone      string    `json:"timezone"`
	DateFormat    string    `json:"date_format"`
	CustomDueDays []int     `json:"custom_due_days,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		ID:         SettingsID,
		Theme:      "system",
		Language:   "en",
		FontSize:   13,
		WeekStart:  "sunday",
		Timezone:   "UTC",
		DateFormat: "yyyy-MM-dd",
		UpdatedAt:  time.Now().UTC(),
	}
}

// EntityID implements Entity.
func (s Settings) EntityID() string { return s.ID }

// Validate checks if the Settings have valid field values.
func (s Settings) Validate() error {
	if s.ID != SettingsID {
		return fmt.Errorf("settings id must be %q (got %q)", SettingsID, s.ID)
	}
	if s.FontSize < 8 || s.FontSize > 72 {
		return fmt.Errorf("font_size must be between 8 and 72 (got %d)", s.FontSize)
	}
	switch s.WeekStart {
	case "sunday", "monday":
	default:
		return fmt.Errorf("week_start must be sunday or monday (got %q)", s.WeekStart)
	}
	for _, d := range s.CustomDueDays {
		if d < 0 {
			return fmt.Errorf("custom_due_days must not be negative (got %d)", d)
		}
	}
	if s.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *Settings) SetDefaults() {
	d := DefaultSettings()
	if s.ID == "" {
		s.ID = d.ID
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.Language == "" {
		s.Language = d.Language
	}
	if s.FontSize == 0 {
		s.FontSize = d.FontSize
	}
	if s.WeekStart == "" {
		s.WeekStart = d.WeekStart
	}
	if s.Timezone == "" {
		s.Timezone = d.Timezone
	}
	if s.DateFormat == "" {
		s.DateFormat = d.DateFormat
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = d.UpdatedAt
	}
}
