package model

import (
	"fmt"
	"strings"
	"time"
)

// Account is a sign-in identity of the local user. Accounts are never
// physically deleted; IsDeleted marks a logical delete in both backends.
type Account struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (a Account) EntityID() string { return a.ID }

// Validate checks if the Account has valid field values.
func (a Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if a.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if a.Email != "" && !strings.Contains(a.Email, "@") {
		return fmt.Errorf("invalid email: %s", a.Email)
	}
	return validateTimestamps(a.CreatedAt, a.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (a *Account) SetDefaults() {
	if a.Provider == "" {
		a.Provider = "local"
	}
	stampDefaults(&a.CreatedAt, &a.UpdatedAt)
}

// User is a person tasks can be assigned to. Like Account, users are only
// logically deleted.
type User struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (u User) EntityID() string { return u.ID }

// Validate checks if the User has valid field values.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("id is required")
	}
	if err := validateName("handle", u.Handle, 100); err != nil {
		return err
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email: %s", u.Email)
	}
	return validateTimestamps(u.CreatedAt, u.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (u *User) SetDefaults() {
	stampDefaults(&u.CreatedAt, &u.UpdatedAt)
}
