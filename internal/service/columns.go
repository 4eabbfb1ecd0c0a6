package service

import (
	"strings"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
)

// DiscoverColumns derives the flat table-mode column list from the field
// catalog: every field addressed under the root array becomes one column,
// headed by its path relative to the row ("name", "items[].qty"). Nested
// object fields flatten into dotted headers; intermediate object and root
// entries produce no column of their own.
func DiscoverColumns(fields []models.FieldDescriptor) []string {
	var columns []string
	for _, f := range fields {
		if f.Type == models.FieldObject {
			continue
		}
		if f.Label == "" || f.Label == f.Path {
			// Root-level entry, not a row field.
			continue
		}
		columns = append(columns, f.Label)
	}
	return columns
}

// ProjectColumns removes excluded columns, preserving order.
func ProjectColumns(discovered []string, excluded []string) []string {
	if len(excluded) == 0 {
		return discovered
	}
	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		skip[e] = true
		// Excluded fields may be stored as full paths.
		skip[schema.LabelForPath(e)] = true
	}

	visible := make([]string, 0, len(discovered))
	for _, c := range discovered {
		if !skip[c] {
			visible = append(visible, c)
		}
	}
	return visible
}

// ReconcileOrder merges a previously persisted column order with the
// columns discovered now: persisted columns keep their relative order,
// newly discovered columns append at the end in discovery order, and
// columns no longer discovered drop silently.
func ReconcileOrder(previousOrder, discovered []string) []models.TableColumn {
	present := make(map[string]bool, len(discovered))
	for _, c := range discovered {
		present[c] = true
	}

	ordered := make([]string, 0, len(discovered))
	seen := make(map[string]bool, len(discovered))
	for _, c := range previousOrder {
		if present[c] && !seen[c] {
			ordered = append(ordered, c)
			seen[c] = true
		}
	}
	for _, c := range discovered {
		if !seen[c] {
			ordered = append(ordered, c)
			seen[c] = true
		}
	}

	columns := make([]models.TableColumn, len(ordered))
	for i, header := range ordered {
		columns[i] = models.TableColumn{ID: i, Header: header}
	}
	return columns
}

// MoveColumn splices the column at index from into index to, returning a
// new slice. Moving a column onto its own index is a no-op, as are
// out-of-range indices.
func MoveColumn(order []string, from, to int) []string {
	next := make([]string, len(order))
	copy(next, order)
	if from == to || from < 0 || to < 0 || from >= len(next) || to >= len(next) {
		return next
	}

	moved := next[from]
	next = append(next[:from], next[from+1:]...)

	tail := make([]string, 0, len(order))
	tail = append(tail, next[:to]...)
	tail = append(tail, moved)
	tail = append(tail, next[to:]...)
	return tail
}

// FlattenRows projects raw row objects onto the visible columns, resolving
// dotted and array-marker headers against each row. Arrays render as their
// element count alongside the raw value being unavailable in a flat cell.
func FlattenRows(rows []map[string]any, columns []string) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		flat := make(map[string]any, len(columns))
		for _, col := range columns {
			v, present := schema.ResolveField(row, columnPath(col))
			if !present {
				flat[col] = nil
				continue
			}
			if arr, ok := v.([]any); ok {
				flat[col] = len(arr)
				continue
			}
			flat[col] = v
		}
		out = append(out, flat)
	}
	return out
}

// columnPath rebuilds a full field path from a column header.
func columnPath(header string) string {
	if strings.HasPrefix(header, models.RootPath) {
		return header
	}
	return models.RootPath + models.ArrayMarker + "." + header
}
