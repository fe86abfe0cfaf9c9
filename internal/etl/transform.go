package etl

import (
	"fmt"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers reshape rows between the source and the catalog, e.g. to
// rename foreign column headers or drop rows before they are imported.
// Each takes a record and returns the (possibly modified) record and
// whether to keep it.

type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `json:"type"` // "filter" | "rename" | "select" | "default" | "type_cast" | "limit"
	Config map[string]any `json:"config"`
}

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform keeps records whose field matches the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "gt" | "lt" | "contains"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	switch t.Op {
	case "eq":
		return r, fmt.Sprint(v) == fmt.Sprint(t.Value)
	case "neq":
		return r, fmt.Sprint(v) != fmt.Sprint(t.Value)
	case "contains":
		return r, strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(t.Value)))
	case "gt":
		return r, toFloat(v) > toFloat(t.Value)
	case "lt":
		return r, toFloat(v) < toFloat(t.Value)
	default:
		return r, true
	}
}

// RenameTransform renames fields, e.g. {"Book Title": "title"}.
type RenameTransform struct {
	Mapping map[string]string // old → new
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	for from, to := range t.Mapping {
		if v, ok := r.Data[from]; ok {
			delete(r.Data, from)
			r.Data[to] = v
		}
	}
	return r, true
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	kept := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			kept[f] = v
		}
	}
	r.Data = kept
	return r, true
}

// DefaultTransform fills fields that are missing or blank.
type DefaultTransform struct {
	Values map[string]any
}

func (t *DefaultTransform) Transform(r Record) (Record, bool) {
	for k, v := range t.Values {
		if cur, ok := r.Data[k]; !ok || cur == nil || strings.TrimSpace(fmt.Sprint(cur)) == "" {
			r.Data[k] = v
		}
	}
	return r, true
}

// DedupeTransform drops records with duplicate values for the given key.
type DedupeTransform struct {
	Key  string
	seen map[string]bool
}

func NewDedupeTransform(key string) *DedupeTransform {
	return &DedupeTransform{Key: key, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	v := strings.ToLower(strings.TrimSpace(fmt.Sprint(r.Data[t.Key])))
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// LimitTransform caps the number of records.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool) {
	t.seen++
	return r, t.seen <= t.Count
}

// TypeCastTransform converts a field's value to a target type.
type TypeCastTransform struct {
	Field    string
	CastType string // "number" | "string"
}

func (t *TypeCastTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, true
	}
	switch t.CastType {
	case "number":
		r.Data[t.Field] = toFloat(v)
	case "string":
		r.Data[t.Field] = formatCell(v)
	}
	return r, true
}

// BuildTransformers converts declarative configs into a fresh chain.
// Stateful transforms (dedupe, limit) start empty on every call. A dedupe
// key, when set, is applied last.
func BuildTransformers(configs []TransformConfig, dedupeKey string) ([]Transformer, error) {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "filter":
			field, _ := tc.Config["field"].(string)
			op, _ := tc.Config["op"].(string)
			if field == "" || op == "" {
				return nil, fmt.Errorf("filter needs field and op")
			}
			ts = append(ts, &FilterTransform{Field: field, Op: op, Value: tc.Config["value"]})

		case "rename":
			mapping, ok := tc.Config["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rename needs a mapping")
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		case "select":
			fields, ok := tc.Config["fields"].([]any)
			if !ok {
				return nil, fmt.Errorf("select needs fields")
			}
			ff := make([]string, 0, len(fields))
			for _, f := range fields {
				ff = append(ff, fmt.Sprint(f))
			}
			ts = append(ts, &SelectTransform{Fields: ff})

		case "default":
			values, ok := tc.Config["values"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("default needs values")
			}
			ts = append(ts, &DefaultTransform{Values: values})

		case "limit":
			count := int(toFloat(tc.Config["count"]))
			if count <= 0 {
				return nil, fmt.Errorf("limit needs a positive count")
			}
			ts = append(ts, NewLimitTransform(count))

		case "type_cast":
			field, _ := tc.Config["field"].(string)
			castType, _ := tc.Config["castType"].(string)
			if field == "" || castType == "" {
				return nil, fmt.Errorf("type_cast needs field and castType")
			}
			ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})

		default:
			return nil, fmt.Errorf("unknown transform type: %q", tc.Type)
		}
	}

	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(dedupeKey))
	}
	return ts, nil
}

// ApplyTransformers runs a chain of transformers on a copy of r.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	if len(ts) == 0 {
		return r, true
	}
	r = r.Clone()
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// ── Helpers ────────────────────────────────────────────────

func toFloat(v any) float64 {
	f, _ := toFloatSafe(v)
	return f
}

func toFloatSafe(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatCell renders a value the way it should appear in a text cell.
// Whole floats print without a fraction so ids read "3", not "3.000000".
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
