package source

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/model"
)

// FileSource reads filing records from a local JSON file, mainly for
// backfills and manual runs against exported data.
type FileSource struct {
	name string
	path string
}

// NewFile creates a FileSource named name reading from path.
func NewFile(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return s.name }

// Fetch implements Source. Filters match against the normalized record
// fields; rows that fail any filter are dropped before the page is cut.
func (s *FileSource) Fetch(ctx context.Context, filters map[string]string, pageSize int) ([]model.RawFilingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", s.path)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", s.path)
	}

	records := make([]model.RawFilingRecord, 0, len(rows))
	for _, row := range rows {
		rec := NormalizeRecord(row)
		if !matchesFilters(rec, filters) {
			continue
		}
		records = append(records, rec)
		if pageSize > 0 && len(records) >= pageSize {
			break
		}
	}
	return records, nil
}

func matchesFilters(rec model.RawFilingRecord, filters map[string]string) bool {
	for key, want := range filters {
		var have string
		switch canonicalKey(key) {
		case "doc_type":
			have = rec.DocType
		case "subdivision":
			have = rec.Subdivision
		case "case_number":
			have = rec.CaseNumber
		default:
			continue
		}
		if !strings.EqualFold(have, want) {
			return false
		}
	}
	return true
}
