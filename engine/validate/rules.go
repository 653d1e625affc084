package validate

import (
	"fmt"
	"strings"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/shopspring/decimal"
)

// RequiredRule fails when the field is null, missing, or blank after
// trimming.
type RequiredRule struct {
	Field string
}

func (r *RequiredRule) Name() string {
	return "required_" + r.Field
}

func (r *RequiredRule) Check(fields entity.Fields) *Violation {
	value, ok := fields[r.Field]
	if !ok || value == nil {
		return &Violation{
			Rule:   r.Name(),
			Field:  r.Field,
			Reason: ReasonRequiredFieldMissing,
			Detail: fmt.Sprintf("%s is required", r.Field),
		}
	}
	if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
		return &Violation{
			Rule:   r.Name(),
			Field:  r.Field,
			Reason: ReasonRequiredFieldMissing,
			Detail: fmt.Sprintf("%s must not be blank", r.Field),
		}
	}
	return nil
}

// RangeRule fails when a present numeric value falls outside
// (Min, Max]: the lower bound is exclusive, the upper inclusive.
// Absent values pass; pair with a RequiredRule when presence matters.
type RangeRule struct {
	Field string
	Min   decimal.Decimal
	Max   decimal.Decimal
}

func (r *RangeRule) Name() string {
	return "range_" + r.Field
}

func (r *RangeRule) Check(fields entity.Fields) *Violation {
	value, ok := fields[r.Field]
	if !ok || value == nil {
		return nil
	}
	var n decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		n = v
	case int64:
		n = decimal.NewFromInt(v)
	default:
		return nil
	}
	if n.GreaterThan(r.Min) && n.LessThanOrEqual(r.Max) {
		return nil
	}
	return &Violation{
		Rule:   r.Name(),
		Field:  r.Field,
		Reason: ReasonOutOfRange,
		Detail: fmt.Sprintf("%s %s outside (%s, %s]", r.Field, n.String(), r.Min.String(), r.Max.String()),
	}
}

// ReferenceRule declares that a field, when present, must point at an
// existing row of the referenced kind. The check itself is delegated:
// storage enforces the constraint and the gateway maps the reported
// violation back to this rule's field.
type ReferenceRule struct {
	Field string
	Ref   entity.Kind
}

func (r *ReferenceRule) Name() string {
	return "reference_" + r.Field
}

func (r *ReferenceRule) Check(_ entity.Fields) *Violation {
	return nil
}
