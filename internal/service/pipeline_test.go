package service

import (
	"encoding/json"
	"testing"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
)

// Payment-style payload exercising the full pipeline: a timestamp field for
// auto-selection, a numeric field to aggregate, and a status to filter on.
var paymentsJSON = `[
	{"createdAt": "2023-01-01", "amount": 100, "status": "paid"},
	{"createdAt": "2023-01-01", "amount": 250, "status": "paid"},
	{"createdAt": "2023-01-02", "amount": 75,  "status": "refunded"},
	{"createdAt": "2023-01-03", "amount": 500, "status": "paid"}
]`

func payments(t *testing.T) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(paymentsJSON), &v); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	return v
}

func TestRunFirstLoadDefaults(t *testing.T) {
	result := Run(RunInput{Data: payments(t), FirstLoad: true, Seq: 1})

	if len(result.Fields) == 0 {
		t.Fatal("field catalog missing")
	}
	if len(result.Series) != 1 {
		t.Fatalf("series: %v", result.Series)
	}

	// createdAt matched a name hint, amount is the first number field, and
	// count was proposed; three x buckets with row counts 2, 1, 1.
	points := result.Series[0].Points
	if len(points) != 3 {
		t.Fatalf("points: %v", points)
	}
	if points[0].X != "2023-01-01" || points[0].Y != 2 {
		t.Errorf("first bucket: %+v", points[0])
	}
	for _, d := range result.Diagnostics {
		t.Errorf("hint-matched pick should produce no diagnostics, got %q", d)
	}
}

func TestRunExplicitConfig(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		YAxis:          "root[].amount",
		YAxisOperation: models.AggSum,
		Formula:        "$ {val / 100}",
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Seq: 1})

	points := result.Series[0].Points
	if points[0].Y != 350 {
		t.Errorf("2023-01-01 sum = %g, want 350", points[0].Y)
	}
	if points[0].Display != "$ 3.5" {
		t.Errorf("display = %q, want $ 3.5", points[0].Display)
	}
	if points[2].Y != 500 || points[2].Display != "$ 5" {
		t.Errorf("2023-01-03: %+v", points[2])
	}
}

func TestRunConditionsFilter(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		YAxis:          "root[].amount",
		YAxisOperation: models.AggSum,
		Conditions: []models.Condition{
			{ID: "fc-1", Field: "root[].status", Operator: models.OpIs, Value: "paid",
				Type: models.FieldString, Saved: true},
		},
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Seq: 1})

	// The refunded row drops, so 2023-01-02 has no bucket.
	if len(result.Series[0].Points) != 2 {
		t.Fatalf("points: %v", result.Series[0].Points)
	}
}

func TestRunGlobalDateRange(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		DateField:      "root[].createdAt",
		YAxisOperation: models.AggCount,
	}
	result := Run(RunInput{
		Data:      payments(t),
		Config:    cfg,
		DateRange: &DateRange{From: "2023-01-02", To: "2023-01-03"},
		Seq:       1,
	})

	points := result.Series[0].Points
	if len(points) != 2 {
		t.Fatalf("date window should keep two days, got %v", points)
	}
	if points[0].X != "2023-01-02" {
		t.Errorf("first kept day: %v", points[0].X)
	}
}

func TestRunSortReorders(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		YAxis:          "root[].amount",
		YAxisOperation: models.AggSum,
		Sort:           models.SortDesc,
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Seq: 1})

	points := result.Series[0].Points
	if points[0].Y != 500 || points[1].Y != 350 || points[2].Y != 75 {
		t.Errorf("desc sort: %v", points)
	}
}

func TestRunDroppedConditionDiagnostic(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		YAxisOperation: models.AggCount,
		Conditions: []models.Condition{
			{ID: "fc-old", Field: "root[].legacy", Operator: models.OpIs, Value: "x", Saved: true},
		},
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Seq: 1})

	// All rows pass (vacuous condition) and a diagnostic is raised.
	if len(result.Series[0].Points) != 3 {
		t.Errorf("vacuous condition must not filter, got %v", result.Series[0].Points)
	}
	if len(result.Diagnostics) != 1 {
		t.Errorf("diagnostics: %v", result.Diagnostics)
	}
}

func TestRunFormulaErrorDegrades(t *testing.T) {
	cfg := models.DatasetConfig{
		XAxis:          "root[].createdAt",
		YAxisOperation: models.AggCount,
		Formula:        "{val +}",
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Seq: 1})

	if len(result.Diagnostics) != 1 {
		t.Fatalf("one formula diagnostic expected, got %v", result.Diagnostics)
	}
	// Display degrades to the plain number on every point.
	if result.Series[0].Points[0].Display != "2" {
		t.Errorf("display = %q, want plain fallback", result.Series[0].Points[0].Display)
	}
}

func TestRunTableMode(t *testing.T) {
	cfg := models.DatasetConfig{
		ExcludedFields: []string{"status"},
		ColumnsOrder:   []string{"amount", "createdAt"},
	}
	result := Run(RunInput{Data: payments(t), Config: cfg, Mode: models.ModeTable, Seq: 1})

	if result.Table == nil {
		t.Fatal("table mode should produce a table")
	}
	if len(result.Table.Columns) != 2 ||
		result.Table.Columns[0] != "amount" || result.Table.Columns[1] != "createdAt" {
		t.Errorf("columns: %v", result.Table.Columns)
	}
	if len(result.Table.Rows) != 4 {
		t.Errorf("rows: %d", len(result.Table.Rows))
	}
	if result.Table.Rows[0]["amount"] != float64(100) {
		t.Errorf("first row: %v", result.Table.Rows[0])
	}
	if result.Series != nil {
		t.Error("table mode should not emit series")
	}
}

// The sampling policy applies to table column discovery the same as to the
// chart field catalog: a wider sample discovers columns beyond row one.
func TestRunTableModeSampleSize(t *testing.T) {
	var v any
	raw := `[{"a": 1}, {"a": 2, "b": "late"}]`
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatal(err)
	}

	result := Run(RunInput{Data: v, Mode: models.ModeTable, Seq: 1})
	for _, col := range result.Table.Columns {
		if col == "b" {
			t.Error("default sample must not discover columns beyond the first row")
		}
	}

	result = Run(RunInput{
		Data: v, Mode: models.ModeTable,
		Sample: schema.Options{SampleSize: 2},
		Seq:    1,
	})
	found := false
	for _, col := range result.Table.Columns {
		if col == "b" {
			found = true
		}
	}
	if !found {
		t.Errorf("SampleSize=2 should discover column b, got %v", result.Table.Columns)
	}
}

func TestRunEmptyAndMalformedInputs(t *testing.T) {
	for _, data := range []any{nil, []any{}, "scalar", float64(42)} {
		result := Run(RunInput{Data: data, FirstLoad: true, Seq: 1})
		if result.Series != nil || result.Table != nil {
			t.Errorf("%v: expected an empty result, got %+v", data, result)
		}
	}
}

func TestRunSingleObjectResponse(t *testing.T) {
	var v any
	if err := json.Unmarshal([]byte(`{"name": "only", "score": 9}`), &v); err != nil {
		t.Fatal(err)
	}
	cfg := models.DatasetConfig{XAxis: "root.name", YAxisOperation: models.AggCount}
	result := Run(RunInput{Data: v, Config: cfg, Seq: 1})

	points := result.Series[0].Points
	if len(points) != 1 || points[0].Y != 1 {
		t.Errorf("single object is one row: %v", points)
	}
}
