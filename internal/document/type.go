package document

import (
	"fmt"
	"strings"

	"github.com/varubogu/flequit-sub003/internal/crdt"
)

const projectPrefix = "project_"

// Type identifies one document. The zero value is the global document.
type Type struct {
	projectID string
}

// Global returns the type of the document holding app-wide collections.
func Global() Type {
	return Type{}
}

// Project returns the type of the document holding one project's collections.
func Project(id string) Type {
	return Type{projectID: id}
}

// IsGlobal reports whether t is the global document.
func (t Type) IsGlobal() bool {
	return t.projectID == ""
}

// ProjectID returns the project id, or "" for the global document.
func (t Type) ProjectID() string {
	return t.projectID
}

// String returns a human-readable representation of the type.
func (t Type) String() string {
	if t.IsGlobal() {
		return "global"
	}
	return "project:" + t.projectID
}

// FileName returns the on-disk name of the document. It depends only on t.
func (t Type) FileName() string {
	if t.IsGlobal() {
		return "global" + crdt.Ext
	}
	return projectPrefix + t.projectID + crdt.Ext
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (Type, error) {
	base, ok := strings.CutSuffix(name, crdt.Ext)
	if !ok {
		return Type{}, fmt.Errorf("not a document file: %s", name)
	}
	if base == "global" {
		return Global(), nil
	}
	id, ok := strings.CutPrefix(base, projectPrefix)
	if !ok || id == "" {
		return Type{}, fmt.Errorf("unrecognized document file: %s", name)
	}
	return Project(id), nil
}

func validateType(t Type) error {
	if t.IsGlobal() {
		return nil
	}
	if strings.ContainsAny(t.projectID, `/\`) || t.projectID == "." || t.projectID == ".." {
		return fmt.Errorf("invalid project id for document: %q", t.projectID)
	}
	return nil
}
