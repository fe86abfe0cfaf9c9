package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/etl"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// streamRecords runs load in a goroutine and streams its records.
func streamRecords(ctx context.Context, load func() ([]etl.Record, error)) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := load()
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

// decodeRecords parses a JSON document and returns the objects found at
// dataPath (or at the root).
func decodeRecords(data []byte, dataPath string) ([]etl.Record, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if dataPath != "" {
		var err error
		if raw, err = navigatePath(raw, dataPath); err != nil {
			return nil, err
		}
	}
	return toRecords(raw)
}

// navigatePath walks a dot-separated path into nested objects.
func navigatePath(obj any, path string) (any, error) {
	current := obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid data path: %q not found", part)
		}
		current = m[part]
	}
	return current, nil
}

// toRecords converts a JSON array of objects (or a single object) into records.
func toRecords(raw any) ([]etl.Record, error) {
	switch v := raw.(type) {
	case []any:
		records := make([]etl.Record, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected an array of objects")
			}
			records = append(records, etl.Record{Data: flattenMap(m)})
		}
		return records, nil
	case map[string]any:
		return []etl.Record{{Data: flattenMap(v)}}, nil
	default:
		return nil, fmt.Errorf("expected an array of objects")
	}
}

// flattenMap keeps scalar values and serialises nested objects/arrays as
// JSON strings.
func flattenMap(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		switch v.(type) {
		case string, float64, bool, nil:
			flat[k] = v
		default:
			b, _ := json.Marshal(v)
			flat[k] = string(b)
		}
	}
	return flat
}

// inferSchema infers a schema from records, fields sorted by name.
func inferSchema(records []etl.Record) *etl.Schema {
	types := make(map[string]string)
	for _, rec := range records {
		for k, v := range rec.Data {
			if _, seen := types[k]; !seen || types[k] == "text" && v != nil {
				types[k] = inferType(v)
			}
		}
	}

	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)

	schema := &etl.Schema{Fields: make([]etl.Field, 0, len(names))}
	for _, n := range names {
		schema.Fields = append(schema.Fields, etl.Field{Name: n, Type: types[n]})
	}
	return schema
}

func inferType(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "text"
	}
}
