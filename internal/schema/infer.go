// Package schema discovers the shape of an arbitrary JSON response: it walks
// a deserialized value, emits an addressable field catalog, and proposes
// default axis choices. No declared schema is required; the catalog is
// rebuilt from scratch for every response.
package schema

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"chartbuilder-go/internal/models"
)

// Options controls inference behavior.
type Options struct {
	// SampleSize is the number of leading array elements inspected when
	// deriving an array's element schema. Elements beyond the sample are
	// assumed structurally uniform. The original behavior (first element
	// only) is SampleSize=1; it is a named policy here so it can be widened
	// without becoming an accidental constant.
	SampleSize int
}

// DefaultOptions returns the standard inference policy.
func DefaultOptions() Options {
	return Options{SampleSize: 1}
}

// Infer walks a deserialized JSON value and returns a FieldDescriptor for
// every addressable leaf, every array boundary, and every intermediate
// object. The top-level value is addressed as "root" (object) or "root[]"
// (array). Traversal is depth-first with object keys visited in sorted
// order, so a fixed shape always yields the same descriptor list.
func Infer(value any) []models.FieldDescriptor {
	return InferWithOptions(value, DefaultOptions())
}

// InferWithOptions is Infer with an explicit sampling policy.
func InferWithOptions(value any, opt Options) []models.FieldDescriptor {
	if opt.SampleSize < 1 {
		opt.SampleSize = 1
	}

	var fields []models.FieldDescriptor
	switch v := value.(type) {
	case []any:
		walk(v, models.RootPath+models.ArrayMarker, opt, &fields)
	default:
		walk(v, models.RootPath, opt, &fields)
	}
	return fields
}

func walk(value any, path string, opt Options, out *[]models.FieldDescriptor) {
	switch v := value.(type) {
	case map[string]any:
		*out = append(*out, descriptor(path, models.FieldObject))
		for _, key := range sortedKeys(v) {
			child := path + "." + key
			switch cv := v[key].(type) {
			case []any:
				walk(cv, child+models.ArrayMarker, opt, out)
			default:
				walk(cv, child, opt, out)
			}
		}

	case []any:
		// path already carries the array marker.
		*out = append(*out, descriptor(path, models.FieldArray))
		// Empty arrays contribute no descendant fields beyond the marker.
		seen := make(map[string]bool)
		limit := opt.SampleSize
		if limit > len(v) {
			limit = len(v)
		}
		for i := 0; i < limit; i++ {
			elem, ok := v[i].(map[string]any)
			if !ok {
				continue
			}
			for _, key := range sortedKeys(elem) {
				if seen[key] {
					continue
				}
				seen[key] = true
				child := path + "." + key
				switch cv := elem[key].(type) {
				case []any:
					walk(cv, child+models.ArrayMarker, opt, out)
				default:
					walk(cv, child, opt, out)
				}
			}
		}

	default:
		*out = append(*out, descriptor(path, classify(v)))
	}
}

func descriptor(path string, t models.FieldType) models.FieldDescriptor {
	return models.FieldDescriptor{Path: path, Type: t, Label: LabelForPath(path)}
}

// LabelForPath strips the root sentinel from a path for display.
func LabelForPath(path string) string {
	label := strings.TrimPrefix(path, models.RootPath+models.ArrayMarker+".")
	label = strings.TrimPrefix(label, models.RootPath+".")
	return label
}

// ============================================================================
// Type classification
// ============================================================================

// timestampDigits is the minimum digit count for a bare number to be read as
// a unix timestamp. Large non-temporal IDs will misclassify as dates under
// this rule; the behavior is kept as documented upstream.
const timestampDigits = 10

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// classify maps a scalar to exactly one FieldType. Classification is total:
// every value lands in one of {boolean, number, string, date}, with nil
// treated as string (an absent value carries no richer signal).
func classify(v any) models.FieldType {
	switch s := v.(type) {
	case bool:
		return models.FieldBoolean
	case float64:
		if looksLikeTimestamp(s) {
			return models.FieldDate
		}
		return models.FieldNumber
	case string:
		if isNumericString(s) {
			if len(digitsOf(s)) >= timestampDigits {
				return models.FieldDate
			}
			return models.FieldNumber
		}
		if ParsesAsDate(s) {
			return models.FieldDate
		}
		return models.FieldString
	default:
		return models.FieldString
	}
}

// looksLikeTimestamp treats long integral numbers as unix timestamps.
// Short numbers are never dates, which keeps small integers numeric.
func looksLikeTimestamp(f float64) bool {
	if f != float64(int64(f)) {
		return false
	}
	return len(digitsOf(strconv.FormatInt(int64(f), 10))) >= timestampDigits
}

// ParsesAsDate reports whether a string parses under any known calendar
// format.
func ParsesAsDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses a value as a calendar instant. Numeric values with
// timestamp length are read as unix seconds or milliseconds.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isNumericString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || len(digitsOf(s)) < timestampDigits {
			return time.Time{}, false
		}
		if len(digitsOf(s)) >= 13 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateValue parses any scalar as a calendar instant: strings go through
// the format list, integral numbers through the timestamp heuristic.
func ParseDateValue(v any) (time.Time, bool) {
	switch s := v.(type) {
	case string:
		return ParseDate(s)
	case float64:
		if !looksLikeTimestamp(s) {
			return time.Time{}, false
		}
		n := int64(s)
		if len(digitsOf(strconv.FormatInt(n, 10))) >= 13 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func isNumericString(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
