package schema

import (
	"strings"

	"chartbuilder-go/internal/models"
)

// Defaults is the proposal produced on first load. Set* flags mark which
// config values the selector actually proposes; a value the user already
// chose is never overridden.
type Defaults struct {
	XAxis          string
	YAxis          string
	YAxisOperation models.AggregationOp

	SetXAxis     bool
	SetYAxis     bool
	SetOperation bool

	// HighConfidence is true when the X pick matched a field name containing
	// "created" or "timestamp" rather than falling back to the first date
	// field. Callers use it to decide whether to show an informational
	// notice.
	HighConfidence bool
}

// Empty reports whether the selector proposed nothing.
func (d Defaults) Empty() bool {
	return !d.SetXAxis && !d.SetYAxis && !d.SetOperation
}

// xAxisNameHints mark field names that strongly suggest a record timestamp.
var xAxisNameHints = []string{"created", "timestamp"}

// SelectDefaults proposes axis defaults for fields of a fresh response.
// Only absent config values receive a proposal. The X pick prefers a
// date-typed field whose name hints at creation time, then the first
// date-typed field; Y picks the first number-typed field. When both axes
// were unset, a default aggregation is proposed alongside the Y pick.
func SelectDefaults(fields []models.FieldDescriptor, existing models.DatasetConfig) Defaults {
	var d Defaults

	if existing.XAxis == "" {
		if path, exact := pickDateField(fields); path != "" {
			d.XAxis = path
			d.SetXAxis = true
			d.HighConfidence = exact
		}
	}

	if existing.YAxis == "" {
		for _, f := range fields {
			if f.Type == models.FieldNumber {
				d.YAxis = f.Path
				d.SetYAxis = true
				break
			}
		}
	}

	if existing.XAxis == "" && existing.YAxis == "" && d.SetYAxis {
		d.YAxisOperation = models.AggCount
		d.SetOperation = true
	}

	return d
}

// pickDateField returns the preferred date field and whether it was an exact
// name-hint match.
func pickDateField(fields []models.FieldDescriptor) (string, bool) {
	fallback := ""
	for _, f := range fields {
		if f.Type != models.FieldDate {
			continue
		}
		name := strings.ToLower(f.Label)
		for _, hint := range xAxisNameHints {
			if strings.Contains(name, hint) {
				return f.Path, true
			}
		}
		if fallback == "" {
			fallback = f.Path
		}
	}
	return fallback, false
}
