package parcels

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/filings-cli/internal/match"
	"github.com/sells-group/filings-cli/pkg/parcelgis"
)

// GISIndex serves parcel candidate searches from a county GIS feature
// service instead of the local parcels table.
type GISIndex struct {
	client parcelgis.Client
}

// NewGISIndex creates a GISIndex over the given client.
func NewGISIndex(client parcelgis.Client) *GISIndex {
	return &GISIndex{client: client}
}

// SearchParcels implements match.Searcher by translating the query into
// a feature-service where expression.
func (g *GISIndex) SearchParcels(ctx context.Context, q match.Query, limit int) ([]match.Candidate, error) {
	var clauses []string

	if len(q.OwnerVariants) > 0 {
		var ors []string
		for _, v := range q.OwnerVariants {
			ors = append(ors, likeClause("OWNER_NAME", v))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if q.Subdivision != "" {
		clauses = append(clauses,
			"("+likeClause("LEGAL_DESC", q.Subdivision)+")")
	}
	if len(q.SubdivisionTokens) > 0 {
		var ors []string
		for _, tok := range q.SubdivisionTokens {
			ors = append(ors, likeClause("LEGAL_DESC", tok))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if q.Block != "" {
		clauses = append(clauses, "("+likeClause("LEGAL_DESC", "BLK "+q.Block)+")")
	}
	if q.Lot != "" {
		clauses = append(clauses, "("+likeClause("LEGAL_DESC", "LOT "+q.Lot)+")")
	}

	where := strings.Join(clauses, " AND ")
	if where == "" {
		where = "1=0"
	}

	found, err := g.client.Search(ctx, where, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]match.Candidate, len(found))
	for i, f := range found {
		candidates[i] = match.Candidate{
			AccountNumber: f.AccountNumber,
			OwnerName:     f.OwnerName,
			LegalText:     f.LegalText,
			SitusNumber:   f.SitusNumber,
			SitusStreet:   f.SitusStreet,
			SitusCity:     f.SitusCity,
			SitusZip:      f.SitusZip,
		}
	}
	return candidates, nil
}

// likeClause builds an UPPER(...) LIKE predicate with the value's single
// quotes doubled, the escaping feature services expect.
func likeClause(field, value string) string {
	escaped := strings.ReplaceAll(strings.ToUpper(value), "'", "''")
	return fmt.Sprintf("UPPER(%s) LIKE '%%%s%%'", field, escaped)
}
