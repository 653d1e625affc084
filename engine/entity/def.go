package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// FieldKind classifies how a field's values are typed and stored.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNullableText
	FieldInt
	FieldDecimal
	FieldDate
	FieldRef
)

var ErrInvalidValue = errors.New("invalid field value")

// FieldDef describes one column of an entity kind. Ref is set for
// FieldRef fields and names the referenced kind.
type FieldDef struct {
	Name string
	Kind FieldKind
	Ref  Kind
}

// Coerce converts a decoded JSON value (or an already-canonical value)
// into the canonical representation for this field. Nil stays nil.
func (fd FieldDef) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch fd.Kind {
	case FieldText, FieldNullableText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldInt, FieldRef:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			if parsed, err := n.Int64(); err == nil {
				return parsed, nil
			}
		}
	case FieldDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n, nil
		case float64:
			return decimal.NewFromFloat(n), nil
		case int64:
			return decimal.NewFromInt(n), nil
		case int:
			return decimal.NewFromInt(int64(n)), nil
		case string:
			if parsed, err := decimal.NewFromString(n); err == nil {
				return parsed, nil
			}
		case json.Number:
			if parsed, err := decimal.NewFromString(n.String()); err == nil {
				return parsed, nil
			}
		}
	case FieldDate:
		switch d := v.(type) {
		case time.Time:
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		case string:
			if parsed, err := time.Parse(time.DateOnly, d); err == nil {
				return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
	}
	return nil, fmt.Errorf("field %s: cannot accept %T: %w", fd.Name, v, ErrInvalidValue)
}

// Def describes an entity kind: its table, id column, and ordered fields.
type Def struct {
	Kind     Kind
	Table    string
	IDColumn string
	Fields   []FieldDef
}

// IDField returns the synthetic definition of the id column, used by
// batch loads that carry source-assigned identifiers.
func (d *Def) IDField() FieldDef {
	return FieldDef{Name: d.IDColumn, Kind: FieldInt}
}

// Field looks up a field definition by name.
func (d *Def) Field(name string) (FieldDef, bool) {
	for _, fd := range d.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return FieldDef{}, false
}

// FieldNames returns all field names in declaration order.
func (d *Def) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, fd := range d.Fields {
		names[i] = fd.Name
	}
	return names
}

// References returns the reference fields in declaration order.
func (d *Def) References() []FieldDef {
	var refs []FieldDef
	for _, fd := range d.Fields {
		if fd.Kind == FieldRef {
			refs = append(refs, fd)
		}
	}
	return refs
}

// Registry holds the entity descriptors, ordered so that referenced
// kinds always precede the kinds that reference them.
type Registry struct {
	defs  map[Kind]*Def
	order []Kind
}

func NewRegistry(defs ...*Def) *Registry {
	r := &Registry{defs: make(map[Kind]*Def, len(defs))}
	for _, def := range defs {
		if _, exists := r.defs[def.Kind]; !exists {
			r.order = append(r.order, def.Kind)
		}
		r.defs[def.Kind] = def
	}
	return r
}

// Get returns the descriptor for kind.
func (r *Registry) Get(kind Kind) (*Def, error) {
	def, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return def, nil
}

// Kinds returns all registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}
