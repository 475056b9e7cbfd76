package parcels

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/db"
	"github.com/sells-group/filings-cli/internal/match"
)

// PGIndex serves parcel candidate searches from the parcels table.
type PGIndex struct {
	pool db.Pool
}

// NewPGIndex creates a PGIndex over the given pool.
func NewPGIndex(pool db.Pool) *PGIndex {
	return &PGIndex{pool: pool}
}

const pgSearchSelect = `SELECT account_number,
	COALESCE(owner_name, ''), COALESCE(legal_text, ''),
	COALESCE(situs_number, ''), COALESCE(situs_street, ''),
	COALESCE(situs_city, ''), COALESCE(situs_zip, '')
FROM parcels`

// SearchParcels implements match.Searcher with ILIKE predicates. Column
// values are stored normalized, so the query's normalized terms compare
// directly.
func (p *PGIndex) SearchParcels(ctx context.Context, q match.Query, limit int) ([]match.Candidate, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.OwnerVariants) > 0 {
		var ors []string
		for _, v := range q.OwnerVariants {
			ors = append(ors, fmt.Sprintf("owner_name ILIKE '%%' || %s || '%%'", arg(v)))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if q.Subdivision != "" {
		ph := arg(q.Subdivision)
		clauses = append(clauses, fmt.Sprintf(
			"(subdivision ILIKE '%%' || %s || '%%' OR legal_text ILIKE '%%' || %s || '%%')", ph, ph))
	}
	if len(q.SubdivisionTokens) > 0 {
		var ors []string
		for _, tok := range q.SubdivisionTokens {
			ph := arg(tok)
			ors = append(ors, fmt.Sprintf(
				"subdivision ILIKE '%%' || %s || '%%' OR legal_text ILIKE '%%' || %s || '%%'", ph, ph))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if q.Block != "" {
		ph := arg(q.Block)
		clauses = append(clauses, fmt.Sprintf(
			"(block = %s OR legal_text ILIKE '%%BLK ' || %s || '%%')", ph, ph))
	}
	if q.Lot != "" {
		ph := arg(q.Lot)
		clauses = append(clauses, fmt.Sprintf(
			"(lot = %s OR legal_text ILIKE '%%LOT ' || %s || '%%')", ph, ph))
	}

	if len(clauses) == 0 {
		return nil, eris.New("parcels: search: empty query")
	}

	sql := pgSearchSelect + " WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY account_number LIMIT " + arg(limit)

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "parcels: search query")
	}
	defer rows.Close()

	var candidates []match.Candidate
	for rows.Next() {
		var c match.Candidate
		if err := rows.Scan(&c.AccountNumber, &c.OwnerName, &c.LegalText,
			&c.SitusNumber, &c.SitusStreet, &c.SitusCity, &c.SitusZip); err != nil {
			return nil, eris.Wrap(err, "parcels: scan candidate")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "parcels: iterate candidates")
	}
	return candidates, nil
}
