// Package audit computes and persists immutable change history for
// monitored entity fields. The recorder is the write side only: it
// receives before/after states from the mutation gateway and never
// reads history back.
package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aethermart/dataplane/engine/core"
	"github.com/aethermart/dataplane/engine/entity"
)

// ErrDeleteNotAudited is returned for delete operations, which have no
// defined history semantics.
var ErrDeleteNotAudited = errors.New("delete operations are not audited")

// Recorder derives history records from accepted mutations. It is
// pure: callers persist the result through a Store inside their own
// transaction.
type Recorder struct {
	policies map[entity.Kind]*Policy
}

func NewRecorder(policies ...*Policy) *Recorder {
	byKind := make(map[entity.Kind]*Policy, len(policies))
	for _, p := range policies {
		byKind[p.Kind] = p
	}
	return &Recorder{policies: byKind}
}

// Changes returns the records an accepted mutation must append, in
// policy declaration order. Kinds without a policy yield nothing.
// Creations emit exactly one whole-row snapshot; updates emit one
// record per changed monitored field or group, and none when nothing
// monitored changed.
func (r *Recorder) Changes(
	op Operation,
	kind entity.Kind,
	id int64,
	before, after entity.Fields,
	actor string,
	at time.Time,
) ([]*Record, error) {
	policy := r.policies[kind]
	if policy == nil {
		return nil, nil
	}
	switch op {
	case OpCreated:
		return created(kind, id, after, actor, at)
	case OpUpdated:
		return updated(policy, kind, id, before, after, actor, at)
	case OpDeleted:
		return nil, ErrDeleteNotAudited
	default:
		return nil, fmt.Errorf("unknown audit operation: %q", op)
	}
}

func created(kind entity.Kind, id int64, after entity.Fields, actor string, at time.Time) ([]*Record, error) {
	snapshot, err := Snapshot(after)
	if err != nil {
		return nil, err
	}
	rec, err := newRecord(StreamFieldAudit, kind, id, SnapshotField, OpCreated, nil, &snapshot, actor, at)
	if err != nil {
		return nil, err
	}
	return []*Record{rec}, nil
}

func updated(
	policy *Policy,
	kind entity.Kind,
	id int64,
	before, after entity.Fields,
	actor string,
	at time.Time,
) ([]*Record, error) {
	var records []*Record
	for _, field := range policy.Monitored {
		oldVal, newVal := before[field], after[field]
		if entity.Equal(oldVal, newVal) {
			continue
		}
		rec, err := newRecord(policy.stream(field), kind, id, field, OpUpdated, render(oldVal), render(newVal), actor, at)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	for _, group := range policy.Groups {
		if !groupChanged(group, before, after) {
			continue
		}
		rec, err := newRecord(
			policy.stream(group.Name),
			kind, id, group.Name, OpUpdated,
			renderGroup(group, before), renderGroup(group, after),
			actor, at,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func newRecord(
	stream Stream,
	kind entity.Kind,
	id int64,
	field string,
	op Operation,
	oldValue, newValue *string,
	actor string,
	at time.Time,
) (*Record, error) {
	uid, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("assigning record id: %w", err)
	}
	return &Record{
		ID:        uid,
		Stream:    stream,
		Kind:      kind,
		EntityID:  id,
		Field:     field,
		Operation: op,
		OldValue:  oldValue,
		NewValue:  newValue,
		Actor:     actor,
		At:        at,
	}, nil
}

func render(value any) *string {
	if value == nil {
		return nil
	}
	s := entity.Render(value)
	return &s
}

func groupChanged(group Group, before, after entity.Fields) bool {
	for _, member := range group.Members {
		if !entity.Equal(before[member], after[member]) {
			return true
		}
	}
	return false
}

// renderGroup joins the rendered member values in declared order. A
// group with every member absent renders as null.
func renderGroup(group Group, fields entity.Fields) *string {
	allAbsent := true
	parts := make([]string, len(group.Members))
	for i, member := range group.Members {
		value := fields[member]
		if value != nil {
			allAbsent = false
			parts[i] = entity.Render(value)
		}
	}
	if allAbsent {
		return nil
	}
	joined := strings.Join(parts, ", ")
	return &joined
}
