package etl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts rows from somewhere outside the catalog.
// Implementations live in etl/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
// The console renders the form from this spec.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "textarea" | "file" | "target"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label, icon, and config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Icon         string        `json:"icon"` // Tabler icon name
	Extensions   []string      `json:"extensions,omitempty"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every data source must implement.
type Source interface {
	Spec() SourceSpec

	// Discover returns the columns the source will produce.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read streams records into a channel that is closed when the source
	// is exhausted or ctx is cancelled. At most one error is sent.
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

// ErrUnsupportedFormat is returned for import files that are neither CSV nor JSON.
var ErrUnsupportedFormat = errors.New("Unsupported file format. Please use CSV or JSON.")

// ── Source Registry ────────────────────────────────────────
// Registration happens via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// SourceForFile picks the registered file source whose spec claims the
// extension of path.
func SourceForFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", ErrUnsupportedFormat
	}

	registryMu.RLock()
	defer registryMu.RUnlock()
	for typ, s := range registry {
		for _, e := range s.Spec().Extensions {
			if e == ext {
				return typ, nil
			}
		}
	}
	return "", ErrUnsupportedFormat
}
