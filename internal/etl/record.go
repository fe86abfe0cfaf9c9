package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate format. Every source emits Records; the import
// engine maps them onto catalog rows and the exporters write them out.

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean"
}

// Schema describes the shape of records coming from a source.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// SchemaOf builds a text schema for the given column names.
func SchemaOf(names ...string) *Schema {
	s := &Schema{Fields: make([]Field, len(names))}
	for i, n := range names {
		s.Fields[i] = Field{Name: n, Type: "text"}
	}
	return s
}

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}

// Clone returns a record whose map can be modified without touching r.
func (r Record) Clone() Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return Record{Data: data}
}
