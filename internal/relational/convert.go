package relational

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Codec projects an entity onto its row type and back.
type Codec[E any, R Row] struct {
	ToRow   func(E) (R, error)
	FromRow func(R) (E, error)
}

// formatTime renders t as RFC 3339 with nanoseconds in UTC. Years outside
// 0..9999 cannot be represented.
func formatTime(t time.Time) (string, error) {
	b, err := t.UTC().MarshalText()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) (sql.NullString, error) {
	if t == nil {
		return sql.NullString{}, nil
	}
	s, err := formatTime(*t)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// timestamps formats a created/updated pair.
func timestamps(created, updated time.Time) (string, string, error) {
	c, err := formatTime(created)
	if err != nil {
		return "", "", fmt.Errorf("created_at: %w", err)
	}
	u, err := formatTime(updated)
	if err != nil {
		return "", "", fmt.Errorf("updated_at: %w", err)
	}
	return c, u, nil
}

func parseTimestamps(created, updated string) (time.Time, time.Time, error) {
	c, err := parseTime(created)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("created_at: %w", err)
	}
	u, err := parseTime(updated)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("updated_at: %w", err)
	}
	return c, u, nil
}

func encodeInts(v []int) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeInts(s string) ([]int, error) {
	if s == "" || s == "[]" || s == "null" {
		return nil, nil
	}
	var v []int
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid integer list %q: %w", s, err)
	}
	return v, nil
}
