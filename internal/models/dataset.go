package models

// AggregationOp is the reduction applied to grouped Y values.
type AggregationOp string

const (
	AggCount   AggregationOp = "count"
	AggSum     AggregationOp = "sum"
	AggAverage AggregationOp = "average"
	AggMin     AggregationOp = "min"
	AggMax     AggregationOp = "max"
)

// Sort directions for resolved series points.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Chart modes.
const (
	ModeChart = "chart"
	ModeTable = "table"
)

// DatasetConfig is the per-dataset chart configuration. It is mutated only
// through the pipeline's update contract and persisted by the external store.
type DatasetConfig struct {
	XAxis          string        `json:"xAxis"`
	YAxis          string        `json:"yAxis,omitempty"`
	YAxisOperation AggregationOp `json:"yAxisOperation,omitempty"`

	// DateField drives the global date-range filter only; it is orthogonal
	// to Conditions.
	DateField string `json:"dateField,omitempty"`

	Sort    string `json:"sort,omitempty"` // "asc", "desc" or "" (keep grouping order)
	GroupBy string `json:"groupBy,omitempty"`
	Formula string `json:"formula,omitempty"`

	// Table mode only.
	ExcludedFields []string `json:"excludedFields,omitempty"`
	ColumnsOrder   []string `json:"columnsOrder,omitempty"`

	Conditions []Condition `json:"conditions,omitempty"`
}
