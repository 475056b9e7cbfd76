// Package source fetches raw filing records from external producers and
// normalizes them into the shared record shape.
package source

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/model"
)

// Source fetches one page of raw filing records. Filters are
// producer-specific query parameters; pageSize is the most records the
// producer should return.
type Source interface {
	Name() string
	Fetch(ctx context.Context, filters map[string]string, pageSize int) ([]model.RawFilingRecord, error)
}

// Registry maps source names to adapters.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry holding the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// Register adds a source, replacing any existing one with the same name.
func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

// Get returns the named source. An unknown name is a configuration
// error and fails immediately rather than falling back to a default.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q (have: %s)", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names lists registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
