// Package parcels loads county parcel rolls from shapefiles into the
// store and serves parcel candidate searches against them.
package parcels

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/db"
	"github.com/sells-group/filings-cli/internal/match"
)

// FieldMapping names the shapefile attributes that feed each parcels
// column. County GIS exports disagree on attribute names, so the mapping
// is explicit rather than guessed.
type FieldMapping struct {
	AccountNumber string
	OwnerName     string
	LegalText     string
	Subdivision   string
	Block         string
	Lot           string
	SitusNumber   string
	SitusStreet   string
	SitusCity     string
	SitusZip      string
}

// DefaultFieldMapping covers the attribute names the common appraisal
// district exports use.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		AccountNumber: "ACCOUNT_NUM",
		OwnerName:     "OWNER_NAME",
		LegalText:     "LEGAL_DESC",
		Subdivision:   "SUBDIV",
		Block:         "BLOCK",
		Lot:           "LOT",
		SitusNumber:   "SITUS_NUM",
		SitusStreet:   "SITUS_STREET",
		SitusCity:     "SITUS_CITY",
		SitusZip:      "SITUS_ZIP",
	}
}

var parcelColumns = []string{
	"account_number", "owner_name", "legal_text", "subdivision",
	"block", "lot", "situs_number", "situs_street", "situs_city",
	"situs_zip", "geom",
}

// ParseShapefile reads a parcel shapefile and returns rows matching
// parcelColumns. Text attributes are normalized the same way search
// predicates are, so index queries compare like against like. Records
// without an account number are skipped.
func ParseShapefile(shpPath string, mapping FieldMapping) ([][]any, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "parcels: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[strings.ToUpper(name)]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	var rows [][]any
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		account := attr(mapping.AccountNumber)
		if account == "" {
			skipped++
			continue
		}

		geomBytes, encErr := encodeGeom(shape)
		if encErr != nil {
			skipped++
			continue
		}

		rows = append(rows, []any{
			account,
			nilIfEmpty(match.Normalize(attr(mapping.OwnerName))),
			nilIfEmpty(match.Normalize(attr(mapping.LegalText))),
			nilIfEmpty(match.Normalize(attr(mapping.Subdivision))),
			nilIfEmpty(match.Normalize(attr(mapping.Block))),
			nilIfEmpty(match.Normalize(attr(mapping.Lot))),
			nilIfEmpty(attr(mapping.SitusNumber)),
			nilIfEmpty(attr(mapping.SitusStreet)),
			nilIfEmpty(attr(mapping.SitusCity)),
			nilIfEmpty(attr(mapping.SitusZip)),
			geomBytes,
		})
	}

	if skipped > 0 {
		zap.L().Debug("parcels: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return rows, nil
}

// Load parses a parcel shapefile and bulk-upserts it into the parcels
// table, returning the number of rows written.
func Load(ctx context.Context, pool db.Pool, shpPath string, mapping FieldMapping) (int64, error) {
	rows, err := ParseShapefile(shpPath, mapping)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		zap.L().Warn("parcels: shapefile produced no rows", zap.String("path", shpPath))
		return 0, nil
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "parcels",
		Columns:      parcelColumns,
		ConflictKeys: []string{"account_number"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "parcels: load %s", shpPath)
	}

	zap.L().Info("parcels: loaded shapefile",
		zap.String("path", shpPath),
		zap.Int64("rows", n),
	)
	return n, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
