package service

import (
	"fmt"
	"strconv"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
)

// Condition IDs are short nanoid strings; the prefix keeps them recognizable
// in persisted configs.
const (
	conditionIDPrefix   = "fc-"
	conditionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	conditionIDLength   = 10
)

// NewCondition creates an empty, unsaved condition ready for editing.
func NewCondition() (models.Condition, error) {
	id, err := nanoid.Generate(conditionIDAlphabet, conditionIDLength)
	if err != nil {
		return models.Condition{}, fmt.Errorf("condition id: %w", err)
	}
	return models.Condition{
		ID:       conditionIDPrefix + id,
		Operator: models.OpIs,
	}, nil
}

// ConditionEdit is a partial update to one condition. Nil fields are left
// untouched.
type ConditionEdit struct {
	ID       string
	Field    *string
	Operator *models.Operator
	Value    *string
	Exposed  *bool
}

// ApplyConditionEdit returns a new condition list with the edit applied to
// the matching entry. The input list is never mutated; callers diff old vs.
// new to decide what to persist.
//
// Changing the field clears the value and drops the saved flag; changing the
// operator or value drops the saved flag. Flipping exposure alone keeps the
// condition saved; it only controls viewer-facing chips.
func ApplyConditionEdit(conditions []models.Condition, edit ConditionEdit) []models.Condition {
	next := make([]models.Condition, len(conditions))
	copy(next, conditions)

	for i := range next {
		if next[i].ID != edit.ID {
			continue
		}
		if edit.Field != nil && *edit.Field != next[i].Field {
			next[i].Field = *edit.Field
			next[i].Value = ""
			next[i].Type = ""
			next[i].Saved = false
		}
		if edit.Operator != nil && *edit.Operator != next[i].Operator {
			next[i].Operator = *edit.Operator
			next[i].Saved = false
		}
		if edit.Value != nil && *edit.Value != next[i].Value {
			next[i].Value = *edit.Value
			next[i].Saved = false
		}
		if edit.Exposed != nil {
			next[i].Exposed = *edit.Exposed
		}
		break
	}
	return next
}

// SaveCondition promotes a pending condition to saved after validation,
// stamping the field's current inferred type for later coercion. Returns a
// new list.
func SaveCondition(conditions []models.Condition, id string, fields []models.FieldDescriptor) ([]models.Condition, error) {
	idx := models.FieldIndex(fields)

	next := make([]models.Condition, len(conditions))
	copy(next, conditions)

	for i := range next {
		if next[i].ID != id {
			continue
		}
		if next[i].Field == "" {
			return conditions, fmt.Errorf("condition %s: field is required", id)
		}
		if next[i].Operator == "" {
			return conditions, fmt.Errorf("condition %s: operator is required", id)
		}
		if next[i].Operator.NeedsValue() && next[i].Value == "" {
			return conditions, fmt.Errorf("condition %s: operator %q requires a value", id, next[i].Operator)
		}
		if t, ok := idx[next[i].Field]; ok {
			next[i].Type = t
		}
		next[i].Saved = true
		return next, nil
	}
	return conditions, fmt.Errorf("condition %s: not found", id)
}

// DeleteCondition removes a condition by ID, returning a new list.
func DeleteCondition(conditions []models.Condition, id string) []models.Condition {
	next := make([]models.Condition, 0, len(conditions))
	for _, c := range conditions {
		if c.ID != id {
			next = append(next, c)
		}
	}
	return next
}

// RevertCondition restores a pending edit to its last saved snapshot. A
// condition created after the snapshot is removed outright.
func RevertCondition(current, snapshot []models.Condition, id string) []models.Condition {
	var restored *models.Condition
	for i := range snapshot {
		if snapshot[i].ID == id {
			restored = &snapshot[i]
			break
		}
	}

	next := make([]models.Condition, 0, len(current))
	for _, c := range current {
		if c.ID != id {
			next = append(next, c)
			continue
		}
		if restored != nil {
			next = append(next, *restored)
		}
	}
	return next
}

// ============================================================================
// Evaluation
// ============================================================================

// Evaluator filters rows against saved conditions. It is built per response
// from the current field catalog; conditions referencing fields that no
// longer exist pass vacuously (benign schema drift must not break existing
// charts) and are reported through Dropped.
type Evaluator struct {
	fields  map[string]models.FieldType
	dropped map[string]bool
}

// NewEvaluator builds an evaluator over the current field catalog.
func NewEvaluator(fields []models.FieldDescriptor) *Evaluator {
	return &Evaluator{
		fields:  models.FieldIndex(fields),
		dropped: make(map[string]bool),
	}
}

// MatchRow reports whether the row passes every saved condition plus every
// entry of the read-only global list (AND semantics throughout). Unsaved
// conditions never participate.
func (e *Evaluator) MatchRow(row map[string]any, conditions, global []models.Condition) bool {
	for _, c := range conditions {
		if !c.Saved {
			continue
		}
		if !e.matchCondition(row, c) {
			return false
		}
	}
	for _, c := range global {
		if !e.matchCondition(row, c) {
			return false
		}
	}
	return true
}

// Dropped returns the IDs of conditions ignored because their field vanished
// from the inferred schema.
func (e *Evaluator) Dropped() []string {
	ids := make([]string, 0, len(e.dropped))
	for id := range e.dropped {
		ids = append(ids, id)
	}
	return ids
}

func (e *Evaluator) matchCondition(row map[string]any, c models.Condition) bool {
	if _, known := e.fields[c.Field]; !known {
		e.dropped[c.ID] = true
		return true
	}

	value, present := schema.ResolveField(row, c.Field)

	switch c.Operator {
	case models.OpIsNull:
		return !present || value == nil
	case models.OpIsNotNull:
		return present && value != nil
	}

	if !present || value == nil {
		// Absent values match nothing; negative operators hold trivially.
		return c.Operator == models.OpIsNot || c.Operator == models.OpDoesNotContain
	}

	switch c.Operator {
	case models.OpIs:
		return e.coerceEqual(value, c)
	case models.OpIsNot:
		return !e.coerceEqual(value, c)
	case models.OpContains:
		return strings.Contains(stringify(value), c.Value)
	case models.OpDoesNotContain:
		return !strings.Contains(stringify(value), c.Value)
	case models.OpGreaterThan:
		cmp, ok := e.compare(value, c)
		return ok && cmp > 0
	case models.OpLessThan:
		cmp, ok := e.compare(value, c)
		return ok && cmp < 0
	}
	return false
}

// coerceEqual tests exact equality after coercing both sides to the
// condition's declared field type.
func (e *Evaluator) coerceEqual(value any, c models.Condition) bool {
	switch e.typeOf(c) {
	case models.FieldNumber:
		left, lok := toFloat(value)
		right, rok := toFloat(c.Value)
		return lok && rok && left == right
	case models.FieldDate:
		left, lok := schema.ParseDateValue(value)
		right, rok := schema.ParseDate(c.Value)
		return lok && rok && left.Equal(right)
	case models.FieldBoolean:
		left, lok := value.(bool)
		right, rerr := strconv.ParseBool(c.Value)
		return lok && rerr == nil && left == right
	default:
		return stringify(value) == c.Value
	}
}

// compare orders value against the condition value under numeric or date
// coercion. Rows whose value cannot be coerced are excluded from the
// comparison rather than failing the evaluation.
func (e *Evaluator) compare(value any, c models.Condition) (int, bool) {
	if e.typeOf(c) == models.FieldDate {
		left, lok := schema.ParseDateValue(value)
		right, rok := schema.ParseDate(c.Value)
		if lok && rok {
			return left.Compare(right), true
		}
		return 0, false
	}

	left, lok := toFloat(value)
	right, rok := toFloat(c.Value)
	if !lok || !rok {
		return 0, false
	}
	switch {
	case left > right:
		return 1, true
	case left < right:
		return -1, true
	default:
		return 0, true
	}
}

func (e *Evaluator) typeOf(c models.Condition) models.FieldType {
	if c.Type != "" {
		return c.Type
	}
	return e.fields[c.Field]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}
