package models

// Operator is a filter comparison operator.
type Operator string

const (
	OpIs             Operator = "is"
	OpIsNot          Operator = "isNot"
	OpContains       Operator = "contains"
	OpDoesNotContain Operator = "doesNotContain"
	OpGreaterThan    Operator = "greaterThan"
	OpLessThan       Operator = "lessThan"
	OpIsNull         Operator = "isNull"
	OpIsNotNull      Operator = "isNotNull"
)

// NeedsValue reports whether the operator compares against a user value.
// isNull/isNotNull test presence only and ignore Value.
func (o Operator) NeedsValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// Condition is a single filter predicate over one field path.
//
// Saved=false means the edit is pending confirmation and never participates
// in evaluation. Exposed=true conditions are surfaced to dashboard viewers
// as removable chips; the flag has no effect on evaluation.
type Condition struct {
	ID       string    `json:"id"`
	Field    string    `json:"field"`
	Operator Operator  `json:"operator"`
	Value    string    `json:"value"`
	Type     FieldType `json:"type,omitempty"`
	Saved    bool      `json:"saved"`
	Exposed  bool      `json:"exposed"`
}

// SavedConditions returns only the saved entries of a condition list.
// Deltas emitted to the config store must never contain unsaved entries.
func SavedConditions(conditions []Condition) []Condition {
	saved := make([]Condition, 0, len(conditions))
	for _, c := range conditions {
		if c.Saved {
			saved = append(saved, c)
		}
	}
	return saved
}
