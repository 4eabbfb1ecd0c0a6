package service

import (
	"sort"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
)

// Resolve collapses filtered rows into chart series. Rows group by their
// xAxis value (order of first appearance) and, when groupBy is set, split
// into one sub-series per group value. Within each group the yAxis values
// reduce under the configured operation; timeseries bucketing by interval
// happens downstream in the renderer, so x values are emitted raw.
//
// A missing xAxis or an empty row set yields no series rather than an error.
func Resolve(rows []map[string]any, cfg models.DatasetConfig, fields []models.FieldDescriptor) []models.Series {
	if cfg.XAxis == "" || len(rows) == 0 {
		return nil
	}

	arrayLength := isArrayField(fields, cfg.YAxis)

	if cfg.GroupBy == "" {
		points := resolvePoints(rows, cfg, "", arrayLength)
		if len(points) == 0 {
			return nil
		}
		return []models.Series{{Points: points}}
	}

	// One sub-series per distinct groupBy value, in first-appearance order.
	var groupOrder []string
	grouped := make(map[string][]map[string]any)
	for _, row := range rows {
		gv, _ := schema.ResolveField(row, cfg.GroupBy)
		key := stringify(gv)
		if _, seen := grouped[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		grouped[key] = append(grouped[key], row)
	}

	series := make([]models.Series, 0, len(groupOrder))
	for _, key := range groupOrder {
		points := resolvePoints(grouped[key], cfg, key, arrayLength)
		series = append(series, models.Series{Name: key, Points: points})
	}
	return series
}

// resolvePoints groups one row set by x value and reduces each group.
func resolvePoints(rows []map[string]any, cfg models.DatasetConfig, label string, arrayLength bool) []models.SeriesPoint {
	var order []string
	xValues := make(map[string]any)
	buckets := make(map[string][]map[string]any)

	for _, row := range rows {
		xv, present := schema.ResolveField(row, cfg.XAxis)
		if !present {
			continue
		}
		key := stringify(xv)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
			xValues[key] = xv
		}
		buckets[key] = append(buckets[key], row)
	}

	points := make([]models.SeriesPoint, 0, len(order))
	for _, key := range order {
		points = append(points, models.SeriesPoint{
			X:     xValues[key],
			Y:     reduce(buckets[key], cfg, arrayLength),
			Label: label,
		})
	}

	switch cfg.Sort {
	case models.SortAsc:
		sort.SliceStable(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	case models.SortDesc:
		sort.SliceStable(points, func(i, j int) bool { return points[i].Y > points[j].Y })
	}
	return points
}

// reduce applies the configured aggregation to one group of rows. Count
// ignores yAxis and counts rows; the numeric operations skip values that do
// not coerce and return 0 for a group left empty by exclusion.
func reduce(rows []map[string]any, cfg models.DatasetConfig, arrayLength bool) float64 {
	op := cfg.YAxisOperation
	if op == models.AggCount || cfg.YAxis == "" {
		return float64(len(rows))
	}

	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		v, present := schema.ResolveField(row, cfg.YAxis)
		if !present {
			continue
		}
		if arrayLength {
			if arr, ok := v.([]any); ok {
				values = append(values, float64(len(arr)))
			}
			continue
		}
		if f, ok := toFloat(v); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return 0
	}

	switch op {
	case models.AggSum:
		return sum(values)
	case models.AggAverage:
		return sum(values) / float64(len(values))
	case models.AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case models.AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	default:
		return sum(values)
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// isArrayField reports whether yAxis addresses an array boundary, switching
// the reduction input to element counts.
func isArrayField(fields []models.FieldDescriptor, path string) bool {
	if path == "" {
		return false
	}
	for _, f := range fields {
		if f.Path == path {
			return f.Type == models.FieldArray
		}
	}
	return false
}
