package schema

import (
	"strings"

	"chartbuilder-go/internal/models"
)

// ResolveField resolves a dotted, array-marker-aware path against a single
// row. The leading "root"/"root[]" segment refers to the row itself. A
// segment ending in the array marker yields the array value when it is the
// last segment; otherwise traversal descends into the array's elements with
// first-match semantics.
//
// The second return value reports presence: (nil, true) is an explicit JSON
// null, (nil, false) an absent path.
func ResolveField(row any, path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	// Strip the root sentinel; the caller already holds the addressed row.
	if first := strings.TrimSuffix(segments[0], models.ArrayMarker); first == models.RootPath {
		segments = segments[1:]
	}
	return resolveSegments(row, segments)
}

func resolveSegments(current any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return current, true
	}

	seg := segments[0]
	isArray := strings.HasSuffix(seg, models.ArrayMarker)
	key := strings.TrimSuffix(seg, models.ArrayMarker)

	obj, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	value, present := obj[key]
	if !present {
		return nil, false
	}

	if !isArray {
		return resolveSegments(value, segments[1:])
	}

	arr, ok := value.([]any)
	if !ok {
		return nil, false
	}
	if len(segments) == 1 {
		return arr, true
	}
	// Descend into elements, first match wins.
	for _, elem := range arr {
		if v, found := resolveSegments(elem, segments[1:]); found {
			return v, true
		}
	}
	return nil, false
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
