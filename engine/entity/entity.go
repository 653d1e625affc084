package entity

import "errors"

// Kind identifies a business entity type backed by a catalog table.
type Kind string

const (
	KindCategory  Kind = "category"
	KindSupplier  Kind = "supplier"
	KindCustomer  Kind = "customer"
	KindProduct   Kind = "product"
	KindOrder     Kind = "order"
	KindOrderItem Kind = "order_item"
	KindReview    Kind = "review"
)

var ErrUnknownKind = errors.New("unknown entity kind")
var ErrUnknownField = errors.New("unknown entity field")

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Valid() bool {
	switch k {
	case KindCategory, KindSupplier, KindCustomer, KindProduct,
		KindOrder, KindOrderItem, KindReview:
		return true
	}
	return false
}

// Fields is a named field-to-value mapping for one entity row. Values are
// canonical: string, int64, decimal.Decimal, time.Time, or nil for null.
// A key present with a nil value is an explicit null; a missing key means
// the field was not provided at all.
type Fields map[string]any

// Clone returns a copy so callers can mutate freely. Values are immutable
// scalars, so copying the map itself is enough.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	copied := make(Fields, len(f))
	for name, value := range f {
		copied[name] = value
	}
	return copied
}

// Merge overlays proposed on top of f and returns the effective row.
// Every key present in proposed wins, including explicit nulls.
func (f Fields) Merge(proposed Fields) Fields {
	merged := f.Clone()
	if merged == nil {
		merged = make(Fields, len(proposed))
	}
	for name, value := range proposed {
		merged[name] = value
	}
	return merged
}

// Has reports whether the field name was provided (even as explicit null).
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Names returns the provided field names in unspecified order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}
