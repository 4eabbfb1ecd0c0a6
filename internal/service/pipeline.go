package service

import (
	"fmt"
	"log"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
)

// RunInput is one pipeline invocation over an already deserialized response.
// Inputs are treated as immutable; the run returns a fresh result and never
// mutates the config or rows, so independent dataset runs are safe in
// parallel.
type RunInput struct {
	Data   any
	Config models.DatasetConfig
	Mode   string // models.ModeChart or models.ModeTable

	// Global is the externally supplied dashboard filter list, merged with
	// the dataset's saved conditions under the same AND semantics.
	Global []models.Condition

	// DateRange is the dashboard-level date window applied over the
	// dataset's DateField. Orthogonal to Conditions; ignored when either
	// end or the DateField is unset.
	DateRange *DateRange

	// FirstLoad lets the auto-field selector propose axis defaults for
	// config values still unset. Explicit user choices are never overridden.
	FirstLoad bool

	// Infer sampling policy; zero value means DefaultOptions.
	Sample schema.Options

	Seq uint64
}

// Run executes the full transformation: infer the field catalog, propose
// defaults on first load, filter rows through saved plus global conditions,
// aggregate into series (or project table columns), and post-process Y
// values through the display formula. Every failure mode degrades to an
// empty or default value with a diagnostic; Run never panics on malformed
// data.
func Run(in RunInput) models.RunResult {
	result := models.RunResult{Seq: in.Seq}

	if in.Sample.SampleSize < 1 {
		in.Sample = schema.DefaultOptions()
	}

	fields := schema.InferWithOptions(in.Data, in.Sample)
	result.Fields = fields

	cfg := in.Config
	if in.FirstLoad {
		defaults := schema.SelectDefaults(fields, cfg)
		if defaults.SetXAxis {
			cfg.XAxis = defaults.XAxis
			if !defaults.HighConfidence {
				result.Diagnostics = append(result.Diagnostics,
					fmt.Sprintf("x-axis %q auto-selected by fallback; review the choice", cfg.XAxis))
			}
		}
		if defaults.SetYAxis {
			cfg.YAxis = defaults.YAxis
		}
		if defaults.SetOperation {
			cfg.YAxisOperation = defaults.YAxisOperation
		}
	}

	rows := rowsOf(in.Data)
	if len(rows) == 0 {
		// Callers render an explicit "no data" state.
		return result
	}

	evaluator := NewEvaluator(fields)
	filtered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if !evaluator.MatchRow(row, cfg.Conditions, in.Global) {
			continue
		}
		if !inDateRange(row, cfg.DateField, in.DateRange) {
			continue
		}
		filtered = append(filtered, row)
	}
	for _, id := range evaluator.Dropped() {
		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("condition %s references a field missing from the current schema; ignored", id))
	}

	if in.Mode == models.ModeTable {
		result.Table = buildTable(filtered, cfg, in.Sample)
		return result
	}

	series := Resolve(filtered, cfg, fields)
	formulaFailed := false
	for si := range series {
		for pi := range series[si].Points {
			display, err := ApplyFormula(cfg.Formula, series[si].Points[pi].Y)
			if err != nil && !formulaFailed {
				formulaFailed = true
				result.Diagnostics = append(result.Diagnostics, err.Error())
			}
			series[si].Points[pi].Display = display
		}
	}
	result.Series = series
	return result
}

// buildTable projects filtered rows into the table-mode structure: discover
// flat columns from the row schema under the run's sampling policy, drop
// exclusions, reconcile against the persisted order, then flatten each row
// onto the visible columns.
func buildTable(rows []map[string]any, cfg models.DatasetConfig, sample schema.Options) *models.TableResult {
	asArray := make([]any, len(rows))
	for i, r := range rows {
		asArray[i] = r
	}
	rowFields := schema.InferWithOptions(asArray, sample)

	discovered := DiscoverColumns(rowFields)
	visible := ProjectColumns(discovered, cfg.ExcludedFields)
	ordered := ReconcileOrder(cfg.ColumnsOrder, visible)

	headers := make([]string, len(ordered))
	for i, c := range ordered {
		headers[i] = c.Header
	}

	return &models.TableResult{
		Columns: headers,
		Rows:    FlattenRows(rows, headers),
	}
}

// DateRange is a dashboard-level [From, To] instant window. Bounds parse
// through the same formats as field classification; an unparseable bound
// disables that side of the window.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// inDateRange applies the global date window to one row. Rows whose date
// field is absent or unparseable are excluded, matching the coercion policy
// for comparisons.
func inDateRange(row map[string]any, dateField string, r *DateRange) bool {
	if r == nil || dateField == "" {
		return true
	}
	raw, present := schema.ResolveField(row, dateField)
	if !present {
		return false
	}
	t, ok := schema.ParseDateValue(raw)
	if !ok {
		return false
	}
	if from, ok := schema.ParseDate(r.From); ok && t.Before(from) {
		return false
	}
	if to, ok := schema.ParseDate(r.To); ok && t.After(to) {
		return false
	}
	return true
}

// rowsOf normalizes the raw response into row objects. A top-level array
// keeps its object elements; a top-level object is a single row.
func rowsOf(data any) []map[string]any {
	switch v := data.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			if obj, ok := elem.(map[string]any); ok {
				rows = append(rows, obj)
			}
		}
		return rows
	case map[string]any:
		return []map[string]any{v}
	default:
		if v != nil {
			log.Printf("pipeline: unsupported top-level value %T, treating as empty", v)
		}
		return nil
	}
}
