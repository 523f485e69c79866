package relational

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ncruces/go-sqlite3"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// translate maps a database/sql or driver error onto the shared taxonomy.
// Errors that are already classified pass through unchanged.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *storeerr.Error
	if errors.As(err, &se) {
		return err
	}

	return storeerr.New(classify(err), op, err)
}

func classify(err error) storeerr.Kind {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return storeerr.KindNotFound
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return storeerr.KindConnection
	case errors.Is(err, sqlite3.CONSTRAINT):
		return storeerr.KindConstraint
	case errors.Is(err, sqlite3.BUSY),
		errors.Is(err, sqlite3.LOCKED),
		errors.Is(err, sqlite3.CANTOPEN),
		errors.Is(err, sqlite3.NOTADB):
		return storeerr.KindConnection
	}

	// libsql reports errors as plain strings
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint failed"):
		return storeerr.KindConstraint
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "database is closed"):
		return storeerr.KindConnection
	}
	return storeerr.KindStorage
}

// IsAlreadyExists reports whether err is the benign outcome of re-applying DDL.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column")
}
