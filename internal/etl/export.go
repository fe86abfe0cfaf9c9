package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ── Writers ────────────────────────────────────────────────
// Exports and templates are written as CSV with a header row or as an
// indented JSON array of objects.

// Format is a file format for export and import templates.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// WriteRecords writes records in the given format. Columns follow the
// schema order; fields outside the schema are dropped.
func WriteRecords(w io.Writer, format Format, schema *Schema, records []Record) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, schema, records)
	case FormatJSON:
		return writeJSON(w, schema, records)
	default:
		return ErrUnsupportedFormat
	}
}

func writeCSV(w io.Writer, schema *Schema, records []Record) error {
	cw := csv.NewWriter(w)
	names := schema.FieldNames()
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(names))
	for _, rec := range records {
		for i, n := range names {
			row[i] = formatCell(rec.Data[n])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, schema *Schema, records []Record) error {
	names := schema.FieldNames()
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		obj := make(map[string]any, len(names))
		for _, n := range names {
			obj[n] = rec.Data[n]
		}
		out = append(out, obj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
