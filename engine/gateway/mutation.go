package gateway

import (
	"errors"
	"fmt"

	"github.com/aethermart/dataplane/engine/audit"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/validate"
)

var (
	// ErrNotFound is returned when an update targets a missing row.
	ErrNotFound = errors.New("entity not found")
	// ErrDeleteNotSupported is returned for delete mutations; the store
	// keeps no delete semantics.
	ErrDeleteNotSupported = errors.New("delete mutations are not supported")
	// ErrMissingID is returned when an update carries no target id.
	ErrMissingID = errors.New("update requires a target id")
	// ErrImmutableID is returned when an update proposes a new value
	// for the id column.
	ErrImmutableID = errors.New("entity identity cannot change")
	// ErrNoFields is returned when a mutation proposes nothing.
	ErrNoFields = errors.New("mutation has no fields")
)

// Op is the kind of write a mutation proposes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mutation is one proposed write. ID is required for updates and
// ignored for inserts; batch loads that must keep source-assigned
// identifiers put the id column in Fields instead. Actor is the
// principal making the change, treated as opaque.
type Mutation struct {
	Kind   entity.Kind
	Op     Op
	ID     int64
	Fields entity.Fields
	Actor  string
}

// Commit is the result of an accepted mutation: the row id, the full
// state as written, and the history records appended alongside it.
type Commit struct {
	ID      int64
	State   entity.Fields
	Records []*audit.Record
}

// Rejection reports a refused mutation. The transaction was rolled
// back: nothing was written and nothing was audited, so resubmitting
// with corrected fields is always safe.
type Rejection struct {
	Kind      entity.Kind
	Op        Op
	Violation *validate.Violation
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s %s rejected: %s", r.Op, r.Kind, r.Violation)
}

// ReferenceError is how storage reports a foreign key violation. The
// gateway translates it into a Rejection carrying the offending field.
type ReferenceError struct {
	Field      string
	Constraint string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s violates reference constraint %s", e.Field, e.Constraint)
}
