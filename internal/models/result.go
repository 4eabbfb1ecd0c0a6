package models

// SeriesPoint is one resolved data point. Y is the reduced numeric value;
// Display carries the formula-formatted rendering of Y (equal to the plain
// number when no formula is set).
type SeriesPoint struct {
	X       any     `json:"x"`
	Y       float64 `json:"y"`
	Label   string  `json:"label,omitempty"`
	Display string  `json:"display,omitempty"`
}

// Series is one ordered logical series for the chart renderer.
type Series struct {
	Name   string        `json:"name"`
	Points []SeriesPoint `json:"points"`
}

// TableColumn is an ephemeral table-mode column, derived each time table
// mode is active.
type TableColumn struct {
	ID     int    `json:"id"`
	Header string `json:"Header"`
}

// TableResult is the renderer-agnostic table-mode output.
type TableResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RunResult is the output of one pipeline run. Diagnostics collect the
// non-fatal degradations (formula errors, dropped stale filters, coercion
// exclusions) so callers can surface them; no failure in the transformation
// is fatal.
type RunResult struct {
	Fields      []FieldDescriptor `json:"fields"`
	Series      []Series          `json:"series,omitempty"`
	Table       *TableResult      `json:"table,omitempty"`
	Diagnostics []string          `json:"diagnostics,omitempty"`

	// Seq is the issuance order of the request that produced this result;
	// stale results (lower Seq than the newest committed) are discarded.
	Seq uint64 `json:"-"`
}
