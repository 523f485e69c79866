// Package storeerr defines the error taxonomy shared by every storage backend.
//
// Each backend translates its native errors into an *Error at its boundary, so
// callers above the repository layer never depend on which backend failed:
//
//	if errors.Is(err, storeerr.ErrNotFound) {
//	    // Handle missing entity
//	}
//
// Validation errors are user-correctable and may be shown verbatim. Everything
// else should be logged with context and surfaced through Public.
package storeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a storage failure.
type Kind int

const (
	// KindUnknown is used for errors that were never classified.
	KindUnknown Kind = iota
	// KindNotFound means the requested entity does not exist.
	KindNotFound
	// KindValidation means a domain invariant was violated before storage.
	KindValidation
	// KindConversion means the domain value could not be projected to or from storage.
	KindConversion
	// KindConnection means the relational pool or a connection could not be acquired.
	KindConnection
	// KindConstraint means a storage-level uniqueness or relational constraint failed.
	KindConstraint
	// KindStorage means the document engine failed on disk I/O or serialization.
	KindStorage
	// KindInvalidOperation means the operation is not supported for the entity.
	KindInvalidOperation
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation error"
	case KindConversion:
		return "conversion error"
	case KindConnection:
		return "connection error"
	case KindConstraint:
		return "constraint violation"
	case KindStorage:
		return "storage error"
	case KindInvalidOperation:
		return "invalid operation"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is checks. An *Error matches the sentinel of its Kind.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConversion       = errors.New("conversion error")
	ErrConnection       = errors.New("connection error")
	ErrConstraint       = errors.New("constraint violation")
	ErrStorage          = errors.New("storage error")
	ErrInvalidOperation = errors.New("invalid operation")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindConversion:
		return ErrConversion
	case KindConnection:
		return ErrConnection
	case KindConstraint:
		return ErrConstraint
	case KindStorage:
		return ErrStorage
	case KindInvalidOperation:
		return ErrInvalidOperation
	default:
		return nil
	}
}

// Error is the tagged error returned across backend boundaries.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "save", "load_data"
	Entity string // entity or table name, may be empty
	ID     string // entity id, may be empty
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
	}
	if e.Entity != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(e.Entity)
		if e.ID != "" {
			sb.WriteString(" ")
			sb.WriteString(e.ID)
		}
	}
	if sb.Len() > 0 {
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an *Error of the given kind with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithEntity returns a copy of e annotated with the entity name and id.
func (e *Error) WithEntity(entity, id string) *Error {
	c := *e
	c.Entity = entity
	c.ID = id
	return &c
}

// Validation is a shorthand for a validation failure.
func Validation(entity string, err error) *Error {
	return &Error{Kind: KindValidation, Op: "validate", Entity: entity, Err: err}
}

// NotFound is a shorthand for a missing entity.
func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUserFacing returns true if the error can be shown to the user verbatim.
// Only validation failures qualify.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation)
}

// Public returns the message that may be surfaced above the storage layer.
// Validation errors keep their detail; everything else is reduced to its kind.
func Public(err error) string {
	if err == nil {
		return ""
	}
	if IsUserFacing(err) {
		var se *Error
		if errors.As(err, &se) && se.Err != nil {
			return se.Err.Error()
		}
		return err.Error()
	}
	return KindOf(err).String()
}
