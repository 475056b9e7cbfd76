// Package match resolves filings that carry no usable street address to a
// parcel by searching a parcel index with progressively looser strategies
// and scoring the candidates each strategy returns.
package match

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
)

// DefaultCandidateLimit caps how many candidates a single strategy query
// may pull from the index.
const DefaultCandidateLimit = 50

// Candidate is one parcel under consideration.
type Candidate struct {
	AccountNumber string
	OwnerName     string
	LegalText     string
	SitusNumber   string
	SitusStreet   string
	SitusCity     string
	SitusZip      string
}

// Address assembles the candidate's situs address, or "" when the street
// is unknown.
func (c Candidate) Address() string {
	if c.SitusStreet == "" {
		return ""
	}
	addr := c.SitusStreet
	if c.SitusNumber != "" {
		addr = c.SitusNumber + " " + addr
	}
	if c.SitusCity != "" {
		addr += ", " + c.SitusCity
	}
	if c.SitusZip != "" {
		addr += " " + c.SitusZip
	}
	return addr
}

// Query describes one strategy's search predicate. A searcher matches a
// parcel when it satisfies every populated field; OwnerVariants and
// SubdivisionTokens each match when ANY of their entries hit.
type Query struct {
	OwnerVariants     []string
	Subdivision       string
	SubdivisionTokens []string
	Block             string
	Lot               string
}

// Empty reports whether the query has no predicate at all.
func (q Query) Empty() bool {
	return len(q.OwnerVariants) == 0 && q.Subdivision == "" &&
		len(q.SubdivisionTokens) == 0 && q.Block == "" && q.Lot == ""
}

// Searcher looks up parcel candidates for a query, returning at most
// limit rows.
type Searcher interface {
	SearchParcels(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// Match is a scored resolution of a filing to a parcel.
type Match struct {
	Candidate Candidate
	Strategy  string
	Score     int
}

type strategy struct {
	name     string
	minScore int
	query    func(rec model.RawFilingRecord, variants []string) Query
}

// The order here is the escalation order: each strategy is cheaper to
// satisfy than the one before it, so the first acceptable score wins.
var strategies = []strategy{
	{
		name:     "exact",
		minScore: 45,
		query: func(rec model.RawFilingRecord, variants []string) Query {
			if len(variants) == 0 || rec.Subdivision == "" {
				return Query{}
			}
			return Query{
				OwnerVariants: variants,
				Subdivision:   Normalize(rec.Subdivision),
				Block:         Normalize(rec.Block),
				Lot:           Normalize(rec.Lot),
			}
		},
	},
	{
		name:     "subdivision_only",
		minScore: 35,
		query: func(rec model.RawFilingRecord, _ []string) Query {
			if rec.Subdivision == "" {
				return Query{}
			}
			return Query{
				Subdivision: Normalize(rec.Subdivision),
				Block:       Normalize(rec.Block),
				Lot:         Normalize(rec.Lot),
			}
		},
	},
	{
		name:     "owner_area",
		minScore: 10,
		query: func(_ model.RawFilingRecord, variants []string) Query {
			return Query{OwnerVariants: variants}
		},
	},
	{
		name:     "fuzzy_subdivision",
		minScore: 20,
		query: func(rec model.RawFilingRecord, _ []string) Query {
			return Query{SubdivisionTokens: Tokens(rec.Subdivision)}
		},
	},
}

// Matcher runs the strategy ladder against a parcel index.
type Matcher struct {
	searcher Searcher
	limit    int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCandidateLimit overrides the per-query candidate cap.
func WithCandidateLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// New creates a Matcher over the given searcher.
func New(searcher Searcher, opts ...Option) *Matcher {
	m := &Matcher{searcher: searcher, limit: DefaultCandidateLimit}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves a filing to its best-scoring parcel, or nil when no
// strategy produces a candidate above its threshold. Searcher failures
// are logged and treated as empty results so a flaky index degrades to
// the next strategy instead of failing the record.
func (m *Matcher) Match(ctx context.Context, rec model.RawFilingRecord) (*Match, error) {
	variants := OwnerVariants(rec.Owner())
	last := LastName(rec.Owner())

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := s.query(rec, variants)
		if q.Empty() {
			continue
		}

		candidates, err := m.searcher.SearchParcels(ctx, q, m.limit)
		if err != nil {
			zap.L().Warn("parcel search failed",
				zap.String("strategy", s.name),
				zap.String("case_number", rec.CaseNumber),
				zap.Error(err))
			continue
		}

		best, score := m.pick(rec, variants, last, candidates)
		if best != nil && score >= s.minScore {
			zap.L().Debug("parcel matched",
				zap.String("strategy", s.name),
				zap.String("case_number", rec.CaseNumber),
				zap.String("account_number", best.AccountNumber),
				zap.Int("score", score))
			return &Match{Candidate: *best, Strategy: s.name, Score: score}, nil
		}
	}
	return nil, nil
}

func (m *Matcher) pick(rec model.RawFilingRecord, variants []string, last string, candidates []Candidate) (*Candidate, int) {
	var best *Candidate
	bestScore := -1
	for i := range candidates {
		score := Score(candidates[i], rec, variants, last)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// Score rates how well a candidate parcel matches the filing. Owner and
// legal-description agreement dominate; situs completeness breaks ties,
// since a candidate without a street address is useless downstream.
func Score(c Candidate, rec model.RawFilingRecord, variants []string, last string) int {
	owner := Normalize(c.OwnerName)
	legal := Normalize(c.LegalText)
	score := 0

	for _, v := range variants {
		if strings.Contains(owner, v) {
			score += 10
			break
		}
	}
	if last != "" && containsWord(owner, last) {
		score += 5
	}
	if sub := Normalize(rec.Subdivision); sub != "" && strings.Contains(legal, sub) {
		score += 20
	}
	if blk := Normalize(rec.Block); blk != "" && (containsWord(legal, "BLK "+blk) || containsWord(legal, "BLOCK "+blk)) {
		score += 15
	}
	if lot := Normalize(rec.Lot); lot != "" && containsWord(legal, "LOT "+lot) {
		score += 15
	}
	if c.SitusStreet != "" {
		score += 10
	}
	if c.SitusCity != "" {
		score += 5
	}
	if c.SitusNumber != "" {
		score += 5
	}
	return score
}

// containsWord reports whether needle appears in haystack at a word
// boundary, so "LOT 1" does not match "LOT 12".
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		leftOK := i == 0 || haystack[i-1] == ' '
		rightOK := end == len(haystack) || !isWordByte(haystack[end])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}
