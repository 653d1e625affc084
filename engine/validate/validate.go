// Package validate evaluates proposed entity states against a closed,
// ordered rule set. Evaluation short-circuits: at most one violation is
// ever reported for an attempt, from the first rule that fails.
package validate

import (
	"fmt"

	"github.com/aethermart/dataplane/engine/entity"
)

// Reason classifies why a mutation was rejected.
type Reason string

const (
	ReasonOutOfRange           Reason = "OUT_OF_RANGE"
	ReasonRequiredFieldMissing Reason = "REQUIRED_FIELD_MISSING"
	ReasonDanglingReference    Reason = "DANGLING_REFERENCE"
)

// Violation describes a single failed rule.
type Violation struct {
	Rule   string
	Field  string
	Reason Reason
	Detail string
}

func (v *Violation) String() string {
	return fmt.Sprintf("%s on %s: %s", v.Reason, v.Field, v.Detail)
}

// Rule checks one property of an effective entity state. A nil result
// means the rule passed.
type Rule interface {
	Name() string
	Check(fields entity.Fields) *Violation
}

// RuleSet is the ordered rule list for one entity kind.
type RuleSet struct {
	Kind  entity.Kind
	Rules []Rule
}

// Check evaluates the rules in order and returns the first violation.
func (rs *RuleSet) Check(fields entity.Fields) *Violation {
	if rs == nil {
		return nil
	}
	for _, rule := range rs.Rules {
		if v := rule.Check(fields); v != nil {
			return v
		}
	}
	return nil
}

// References returns the declared reference rules of this set.
func (rs *RuleSet) References() []*ReferenceRule {
	if rs == nil {
		return nil
	}
	var refs []*ReferenceRule
	for _, rule := range rs.Rules {
		if ref, ok := rule.(*ReferenceRule); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Rules maps entity kinds to their rule sets. Kinds without an entry
// validate vacuously.
type Rules map[entity.Kind]*RuleSet

// For returns the rule set for kind, or nil when none is configured.
func (r Rules) For(kind entity.Kind) *RuleSet {
	return r[kind]
}
