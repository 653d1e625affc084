package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/normalize"
	"github.com/aethermart/dataplane/engine/validate"
	"github.com/shopspring/decimal"
)

// Some extracts write the literal string NULL for unknown values.
const nullToken = "NULL"

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// TransformRow normalizes one staged row in place. Cells are rewritten
// in canonical form, and the row is flagged with the first problem
// found: a present cell that does not parse, a missing or non-positive
// identifier, a rule violation, or a table-specific check.
func TransformRow(def *entity.Def, rules *validate.RuleSet, row *StagedRow) {
	columns := payloadColumns(def)
	parsed := make(entity.Fields, len(def.Fields))
	var firstProblem string
	for _, fd := range columns {
		value, problem := parseValue(fd, row.Values[fd.Name])
		if problem != "" && firstProblem == "" {
			firstProblem = problem
		}
		if fd.Name != def.IDColumn {
			parsed[fd.Name] = value
		}
		row.Values[fd.Name] = renderCell(value)
		if firstProblem == "" && (fd.Name == def.IDColumn || fd.Kind == entity.FieldRef) {
			if id, ok := value.(int64); !ok || id <= 0 {
				firstProblem = fmt.Sprintf("%s must be a positive integer", fd.Name)
			}
		}
	}
	if firstProblem == "" {
		if violation := rules.Check(parsed); violation != nil {
			firstProblem = violation.Detail
		}
	}
	if firstProblem == "" {
		firstProblem = checkStaged(def.Kind, parsed)
	}
	row.Valid = firstProblem == ""
	row.Message = nil
	if !row.Valid {
		row.Message = &firstProblem
	}
}

// ParseRow converts a transformed staged row into typed fields for the
// gateway, the source-assigned id included. Absent cells are omitted.
func ParseRow(def *entity.Def, row *StagedRow) (entity.Fields, error) {
	columns := payloadColumns(def)
	fields := make(entity.Fields, len(columns))
	for _, fd := range columns {
		value, problem := parseValue(fd, row.Values[fd.Name])
		if problem != "" {
			return nil, fmt.Errorf("staged row %d: %s", row.ID, problem)
		}
		if value != nil {
			fields[fd.Name] = value
		}
	}
	return fields, nil
}

func payloadColumns(def *entity.Def) []entity.FieldDef {
	columns := make([]entity.FieldDef, 0, len(def.Fields)+1)
	columns = append(columns, def.IDField())
	return append(columns, def.Fields...)
}

// parseValue interprets one raw cell according to the column kind. It
// returns the canonical value (nil when absent) and a problem detail
// for present cells that do not parse.
func parseValue(fd entity.FieldDef, raw *string) (any, string) {
	if raw == nil {
		return nil, ""
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || trimmed == nullToken {
		return nil, ""
	}
	switch fd.Kind {
	case entity.FieldText, entity.FieldNullableText:
		return *raw, ""
	case entity.FieldInt, entity.FieldRef:
		n := normalize.Rating(trimmed)
		if n.Class != normalize.Parsed {
			return nil, fmt.Sprintf("%s is not a whole number", fd.Name)
		}
		return n.Value, ""
	case entity.FieldDecimal:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return nil, fmt.Sprintf("%s is not a number", fd.Name)
		}
		return d, ""
	case entity.FieldDate:
		n := normalize.Date(trimmed)
		if n.Class != normalize.Parsed {
			return nil, fmt.Sprintf("%s is not a recognized date", fd.Name)
		}
		return n.Value, ""
	default:
		return nil, fmt.Sprintf("%s has no parser", fd.Name)
	}
}

func renderCell(value any) *string {
	if value == nil {
		return nil
	}
	s := entity.Render(value)
	return &s
}

// checkStaged applies the source system's table-specific row checks
// that sit outside the shared rule sets.
func checkStaged(kind entity.Kind, fields entity.Fields) string {
	switch kind {
	case entity.KindCustomer:
		if email, ok := fields["email"].(string); ok {
			if !emailPattern.MatchString(strings.TrimSpace(email)) {
				return "email is not a valid address"
			}
		}
	case entity.KindOrder:
		if total, ok := fields["total_amount"].(decimal.Decimal); ok {
			if total.IsNegative() {
				return "total_amount must not be negative"
			}
		}
	}
	return ""
}
