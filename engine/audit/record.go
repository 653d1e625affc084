package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aethermart/dataplane/engine/core"
	"github.com/aethermart/dataplane/engine/entity"
)

// Operation tags what happened to the subject row.
type Operation string

const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// Stream selects which history table a record lands in.
type Stream string

const (
	// StreamFieldAudit is the generic per-field history.
	StreamFieldAudit Stream = "field_audit"
	// StreamPriceHistory is the price-specialized history.
	StreamPriceHistory Stream = "price_history"
)

// SnapshotField marks a record that captures the whole row rather than
// a single field.
const SnapshotField = "_record"

// Record is one immutable history entry. Appended exactly once; never
// updated, deleted, or read back by this package. Ordering per entity
// is by At, ties broken by storage insertion sequence.
type Record struct {
	ID        core.ID
	Stream    Stream
	Kind      entity.Kind
	EntityID  int64
	Field     string
	Operation Operation
	OldValue  *string
	NewValue  *string
	Actor     string
	At        time.Time
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %s/%d %s (%s)", r.Operation, r.Kind, r.EntityID, r.Field, r.Stream)
}

// Snapshot serializes the populated fields of a row as the new-value
// payload of a created record. encoding/json sorts map keys, so equal
// states always produce equal payloads.
func Snapshot(fields entity.Fields) (string, error) {
	rendered := make(map[string]string, len(fields))
	for name, value := range fields {
		if value == nil {
			continue
		}
		rendered[name] = entity.Render(value)
	}
	data, err := json.Marshal(rendered)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	return string(data), nil
}
