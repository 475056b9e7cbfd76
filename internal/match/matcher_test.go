package match

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/model"
)

type fakeSearcher struct {
	results map[string][]Candidate // keyed by strategy signature
	queries []Query
	err     error
}

func (f *fakeSearcher) SearchParcels(_ context.Context, q Query, _ int) ([]Candidate, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	switch {
	case len(q.OwnerVariants) > 0 && q.Subdivision != "":
		return f.results["exact"], nil
	case q.Subdivision != "":
		return f.results["subdivision_only"], nil
	case len(q.OwnerVariants) > 0:
		return f.results["owner_area"], nil
	default:
		return f.results["fuzzy_subdivision"], nil
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "JOSE GARCIA", Normalize("  José   García "))
	assert.Equal(t, "OAK PARK", Normalize("oak park"))
	assert.Equal(t, "", Normalize("   "))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"OAK", "PARK", "ESTATES"}, Tokens("Oak Park Estates"))
	assert.Equal(t, []string{"THE", "HEIGHTS"}, Tokens("the Heights no. 2"))
}

func TestOwnerVariants(t *testing.T) {
	variants := OwnerVariants("John Q Smith")

	assert.Contains(t, variants, "JOHN Q SMITH")
	assert.Contains(t, variants, "JOHN SMITH")
	assert.Contains(t, variants, "SMITH JOHN")
	assert.Contains(t, variants, "SMITH, JOHN")
	assert.Contains(t, variants, "SMITH, JOHN Q")
	assert.Contains(t, variants, "SMITH")
	assert.Contains(t, variants, "JOHN")
}

func TestOwnerVariantsCommaForm(t *testing.T) {
	variants := OwnerVariants("Smith, John")

	assert.Equal(t, "SMITH, JOHN", variants[0])
	assert.Contains(t, variants, "JOHN SMITH")
	assert.Contains(t, variants, "SMITH JOHN")
	assert.Contains(t, variants, "SMITH")
}

func TestOwnerVariantsDedup(t *testing.T) {
	variants := OwnerVariants("Smith")
	assert.Equal(t, []string{"SMITH"}, variants)
}

func TestLastName(t *testing.T) {
	assert.Equal(t, "SMITH", LastName("John Smith"))
	assert.Equal(t, "SMITH", LastName("Smith, John"))
	assert.Equal(t, "SMITH", LastName("smith"))
	assert.Equal(t, "", LastName(""))
}

func TestScoreFullAgreement(t *testing.T) {
	rec := model.RawFilingRecord{
		OwnerName:   "John Smith",
		Subdivision: "Oak Park",
		Block:       "3",
		Lot:         "12",
	}
	c := Candidate{
		OwnerName:   "SMITH JOHN",
		LegalText:   "LOT 12 BLK 3 OAK PARK",
		SitusStreet: "MAPLE ST",
		SitusCity:   "CYPRESS",
		SitusNumber: "101",
	}

	variants := OwnerVariants(rec.Owner())
	score := Score(c, rec, variants, LastName(rec.Owner()))

	// 10 owner variant + 5 last name + 20 subdivision + 15 block +
	// 15 lot + 10 street + 5 city + 5 number.
	assert.Equal(t, 85, score)
}

func TestScoreLegalOnly(t *testing.T) {
	rec := model.RawFilingRecord{
		Subdivision: "Oak Park",
		Block:       "3",
		Lot:         "12",
	}
	c := Candidate{LegalText: "LOT 12 BLK 3 OAK PARK"}

	score := Score(c, rec, nil, "")
	assert.Equal(t, 50, score)
}

func TestScoreLotBoundary(t *testing.T) {
	rec := model.RawFilingRecord{Lot: "1"}

	hit := Score(Candidate{LegalText: "LOT 1 BLK 2"}, rec, nil, "")
	miss := Score(Candidate{LegalText: "LOT 12 BLK 2"}, rec, nil, "")

	assert.Equal(t, 15, hit)
	assert.Equal(t, 0, miss, "LOT 1 must not match inside LOT 12")
}

func TestMatchEscalatesToSubdivisionOnly(t *testing.T) {
	// The owner name on the roll differs entirely, so the exact strategy
	// scores below its threshold, but the legal description alone clears
	// the subdivision_only bar.
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"exact": nil,
		"subdivision_only": {{
			AccountNumber: "ACCT-1",
			OwnerName:     "WILLIAMS ROBERT",
			LegalText:     "LOT 12 BLK 3 OAK PARK",
		}},
	}}

	m := New(searcher)
	got, err := m.Match(context.Background(), model.RawFilingRecord{
		CaseNumber:  "2026-001",
		OwnerName:   "Smith, John",
		Subdivision: "Oak Park",
		Block:       "3",
		Lot:         "12",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "subdivision_only", got.Strategy)
	assert.Equal(t, "ACCT-1", got.Candidate.AccountNumber)
	assert.GreaterOrEqual(t, got.Score, 35)
}

func TestMatchFirstStrategyWins(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"exact": {{
			AccountNumber: "ACCT-9",
			OwnerName:     "SMITH JOHN",
			LegalText:     "LOT 12 BLK 3 OAK PARK",
			SitusStreet:   "MAPLE ST",
		}},
	}}

	m := New(searcher)
	got, err := m.Match(context.Background(), model.RawFilingRecord{
		OwnerName:   "John Smith",
		Subdivision: "Oak Park",
		Block:       "3",
		Lot:         "12",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "exact", got.Strategy)
	assert.Len(t, searcher.queries, 1, "later strategies must not run after a hit")
}

func TestMatchNoCandidates(t *testing.T) {
	m := New(&fakeSearcher{results: map[string][]Candidate{}})

	got, err := m.Match(context.Background(), model.RawFilingRecord{
		OwnerName:   "John Smith",
		Subdivision: "Oak Park",
	})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchSearcherErrorDegrades(t *testing.T) {
	m := New(&fakeSearcher{err: eris.New("index down")})

	got, err := m.Match(context.Background(), model.RawFilingRecord{
		OwnerName:   "John Smith",
		Subdivision: "Oak Park",
	})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchPicksHighestScore(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"exact": {
			{AccountNumber: "WEAK", OwnerName: "SMITH JOHN", LegalText: "OAK PARK"},
			{AccountNumber: "STRONG", OwnerName: "SMITH JOHN", LegalText: "LOT 12 BLK 3 OAK PARK", SitusStreet: "MAPLE ST"},
		},
	}}

	m := New(searcher)
	got, err := m.Match(context.Background(), model.RawFilingRecord{
		OwnerName:   "John Smith",
		Subdivision: "Oak Park",
		Block:       "3",
		Lot:         "12",
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "STRONG", got.Candidate.AccountNumber)
}

func TestCandidateAddress(t *testing.T) {
	c := Candidate{SitusNumber: "101", SitusStreet: "MAPLE ST", SitusCity: "CYPRESS", SitusZip: "77429"}
	assert.Equal(t, "101 MAPLE ST, CYPRESS 77429", c.Address())

	assert.Equal(t, "", Candidate{SitusCity: "CYPRESS"}.Address())
}
