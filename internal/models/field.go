package models

// FieldType classifies a value discovered in a raw response.
type FieldType string

const (
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
	FieldBoolean FieldType = "boolean"
	FieldNumber  FieldType = "number"
	FieldString  FieldType = "string"
	FieldDate    FieldType = "date"
)

// ArrayMarker is the reserved path segment suffix denoting "this level is an
// array; descend into its element schema". A path like "root[].items[].name"
// addresses the name field of objects inside the items array.
const ArrayMarker = "[]"

// RootPath is the sentinel path for a top-level object response.
// A top-level array response is addressed as RootPath + ArrayMarker.
const RootPath = "root"

// FieldDescriptor is one addressable field discovered in a raw response.
// The descriptor set is rebuilt from scratch on every new response; it is
// never diffed or merged across responses.
type FieldDescriptor struct {
	Path  string    `json:"path"`
	Type  FieldType `json:"type"`
	Label string    `json:"label"`
}

// FieldIndex builds a path → type lookup from a descriptor list.
func FieldIndex(fields []FieldDescriptor) map[string]FieldType {
	idx := make(map[string]FieldType, len(fields))
	for _, f := range fields {
		idx[f.Path] = f.Type
	}
	return idx
}
