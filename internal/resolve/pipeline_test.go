package resolve

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/cache"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/resilience"
	"github.com/sells-group/filings-cli/pkg/addrval"
	"github.com/sells-group/filings-cli/pkg/propdata"
)

type fakeValidator struct {
	result addrval.Result
	calls  int
}

func (f *fakeValidator) Validate(_ context.Context, raw string) *addrval.Result {
	f.calls++
	if f.result.CanonicalAddress == "" {
		return &addrval.Result{CanonicalAddress: raw, Source: "raw"}
	}
	result := f.result
	return &result
}

type fakePropClient struct {
	record  *propdata.PropertyRecord
	err     error
	errOn   map[propdata.Encoding]error
	hitOn   propdata.Encoding
	queries []propdata.Query
}

func (f *fakePropClient) Available() bool { return true }

func (f *fakePropClient) Lookup(_ context.Context, q propdata.Query) (*propdata.PropertyRecord, error) {
	f.queries = append(f.queries, q)
	if err, ok := f.errOn[q.Encoding]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if q.Encoding == f.hitOn {
		return f.record, nil
	}
	return nil, nil
}

func newPipeline(v Validator, c propdata.Client) *Pipeline {
	return New(v, c, cache.New(nil))
}

func TestEnrichDerivesEquity(t *testing.T) {
	prop := &fakePropClient{
		hitOn: propdata.EncCombined,
		record: &propdata.PropertyRecord{
			ParcelID:  "ACCT-77",
			OwnerName: "SMITH JOHN",
			Assessment: propdata.Assessment{
				MarketValue:         model.Float64(317745),
				FirstMortgageAmount: model.Float64(200000),
			},
		},
	}
	p := newPipeline(&fakeValidator{result: addrval.Result{
		CanonicalAddress: "123 MAIN ST, HOUSTON, TX 77001",
		Source:           "google",
		Matched:          true,
	}}, prop)

	got := p.Enrich(context.Background(), "123 Main St Houston")

	require.Empty(t, got.Error)
	assert.Equal(t, "ACCT-77", got.ParcelID)
	assert.Equal(t, "SMITH JOHN", got.OwnerName)
	require.NotNil(t, got.MarketValue)
	require.NotNil(t, got.LoanBalance)
	require.NotNil(t, got.AvailableEquity)
	require.NotNil(t, got.LTV)
	assert.InDelta(t, 317745, *got.MarketValue, 0.01)
	assert.InDelta(t, 200000, *got.LoanBalance, 0.01)
	assert.InDelta(t, 117745, *got.AvailableEquity, 0.01)
	assert.InDelta(t, 0.6294, *got.LTV, 0.001)
}

func TestEnrichSumsBothMortgages(t *testing.T) {
	prop := &fakePropClient{
		hitOn: propdata.EncCombined,
		record: &propdata.PropertyRecord{
			ParcelID: "ACCT-1",
			Assessment: propdata.Assessment{
				MarketValue:          model.Float64(400000),
				FirstMortgageAmount:  model.Float64(250000),
				SecondMortgageAmount: model.Float64(50000),
			},
		},
	}
	p := newPipeline(&fakeValidator{}, prop)

	got := p.Enrich(context.Background(), "1 A St, Town, TX 77001")

	require.NotNil(t, got.LoanBalance)
	assert.InDelta(t, 300000, *got.LoanBalance, 0.01)
	assert.InDelta(t, 100000, *got.AvailableEquity, 0.01)
	assert.InDelta(t, 0.75, *got.LTV, 0.0001)
}

func TestEnrichMissingInputsLeaveNils(t *testing.T) {
	prop := &fakePropClient{
		hitOn: propdata.EncCombined,
		record: &propdata.PropertyRecord{
			ParcelID:   "ACCT-2",
			Assessment: propdata.Assessment{MarketValue: model.Float64(250000)},
		},
	}
	p := newPipeline(&fakeValidator{}, prop)

	got := p.Enrich(context.Background(), "2 B St, Town, TX 77001")

	require.NotNil(t, got.MarketValue)
	assert.Nil(t, got.LoanBalance)
	assert.Nil(t, got.AvailableEquity)
	assert.Nil(t, got.LTV)
}

func TestEnrichEmptyAddress(t *testing.T) {
	p := newPipeline(&fakeValidator{}, &fakePropClient{})

	got := p.Enrich(context.Background(), "   ")

	assert.Equal(t, "no address", got.Error)
	assert.Empty(t, got.CanonicalAddress)
}

func TestEnrichNoPropertyRecord(t *testing.T) {
	// The fake returns nil for every encoding.
	prop := &fakePropClient{hitOn: propdata.Encoding(-1)}
	p := newPipeline(&fakeValidator{result: addrval.Result{
		CanonicalAddress: "5 C ST, TOWN, TX 77001",
		Source:           "smarty",
		Matched:          true,
	}}, prop)

	got := p.Enrich(context.Background(), "5 C St")

	assert.Equal(t, "property record not found", got.Error)
	assert.Equal(t, "5 C ST, TOWN, TX 77001", got.CanonicalAddress)
	assert.Equal(t, "smarty", got.ResolutionSource)
	assert.Len(t, prop.queries, 3, "all encodings should be attempted")
}

func TestEnrichFallsThroughEncodings(t *testing.T) {
	prop := &fakePropClient{
		hitOn:  propdata.EncComponents,
		record: &propdata.PropertyRecord{ParcelID: "ACCT-3"},
	}
	p := newPipeline(&fakeValidator{result: addrval.Result{
		CanonicalAddress: "9 D ST, TOWN, TX 77001",
		Source:           "google",
		Matched:          true,
	}}, prop)

	got := p.Enrich(context.Background(), "9 D St")

	assert.Equal(t, "ACCT-3", got.ParcelID)
	require.Len(t, prop.queries, 3)
	assert.Equal(t, propdata.EncCombined, prop.queries[0].Encoding)
	assert.Equal(t, propdata.EncSplit, prop.queries[1].Encoding)
	assert.Equal(t, propdata.EncComponents, prop.queries[2].Encoding)
}

func TestEnrichLookupErrorDegrades(t *testing.T) {
	prop := &fakePropClient{err: eris.New("provider down")}
	p := newPipeline(&fakeValidator{}, prop)

	got := p.Enrich(context.Background(), "7 E St, Town, TX 77001")

	assert.Equal(t, "property lookup failed", got.Error)
	assert.NotEmpty(t, got.CanonicalAddress)
}

func TestEnrichEncodingErrorTriesNext(t *testing.T) {
	// A transient failure on one encoding should not abort the others.
	prop := &fakePropClient{
		errOn:  map[propdata.Encoding]error{propdata.EncCombined: eris.New("status 503")},
		hitOn:  propdata.EncSplit,
		record: &propdata.PropertyRecord{ParcelID: "ACCT-9"},
	}
	p := newPipeline(&fakeValidator{result: addrval.Result{
		CanonicalAddress: "4 H ST, TOWN, TX 77001",
		Source:           "google",
		Matched:          true,
	}}, prop)

	got := p.Enrich(context.Background(), "4 H St")

	assert.Empty(t, got.Error)
	assert.Equal(t, "ACCT-9", got.ParcelID)
	require.Len(t, prop.queries, 2)
	assert.Equal(t, propdata.EncSplit, prop.queries[1].Encoding)
}

func TestEnrichPermanentErrorStopsLookup(t *testing.T) {
	prop := &fakePropClient{
		errOn: map[propdata.Encoding]error{
			propdata.EncCombined: resilience.NewPermanentError(eris.New("auth rejected"), 401),
		},
	}
	p := newPipeline(&fakeValidator{}, prop)

	got := p.Enrich(context.Background(), "6 J St, Town, TX 77001")

	assert.Equal(t, "property lookup failed", got.Error)
	assert.Len(t, prop.queries, 1, "auth rejection should not try further encodings")
}

func TestEnrichUnconfirmedMissNotCached(t *testing.T) {
	// One encoding errored, the rest missed: not a confirmed miss, so the
	// next resolution must query the provider again.
	prop := &fakePropClient{
		errOn: map[propdata.Encoding]error{propdata.EncCombined: eris.New("status 502")},
		hitOn: propdata.Encoding(-1),
	}
	p := newPipeline(&fakeValidator{result: addrval.Result{
		CanonicalAddress: "2 K ST, TOWN, TX 77001",
		Source:           "google",
		Matched:          true,
	}}, prop)

	got := p.Enrich(context.Background(), "2 K St")
	assert.Equal(t, "property record not found", got.Error)
	calls := len(prop.queries)

	p.Enrich(context.Background(), "2 K St")
	assert.Equal(t, calls*2, len(prop.queries), "an unconfirmed miss must not be cached")
}

func TestEnrichCachesValidation(t *testing.T) {
	v := &fakeValidator{result: addrval.Result{
		CanonicalAddress: "8 F ST, TOWN, TX 77001",
		Source:           "google",
		Matched:          true,
	}}
	prop := &fakePropClient{hitOn: propdata.EncCombined, record: &propdata.PropertyRecord{ParcelID: "A"}}
	p := newPipeline(v, prop)

	p.Enrich(context.Background(), "8 F St")
	p.Enrich(context.Background(), "8 F St")

	assert.Equal(t, 1, v.calls, "second resolution should hit the cache")
}

func TestEnrichRawFallbackNotCached(t *testing.T) {
	// Unmatched validation means the providers missed or were down; the
	// raw fallback must not be pinned for the address TTL.
	v := &fakeValidator{}
	prop := &fakePropClient{hitOn: propdata.EncCombined, record: &propdata.PropertyRecord{ParcelID: "B"}}
	p := newPipeline(v, prop)

	p.Enrich(context.Background(), "10 L St, Town, TX 77001")
	p.Enrich(context.Background(), "10 L St, Town, TX 77001")

	assert.Equal(t, 2, v.calls, "unmatched results should be revalidated")
}

func TestEnrichCachesPropertyMiss(t *testing.T) {
	prop := &fakePropClient{hitOn: propdata.Encoding(-1)}
	p := newPipeline(&fakeValidator{}, prop)

	p.Enrich(context.Background(), "3 G St, Town, TX 77001")
	calls := len(prop.queries)
	p.Enrich(context.Background(), "3 G St, Town, TX 77001")

	assert.Equal(t, calls, len(prop.queries), "a confirmed miss must be cached")
}

func TestEncodeQueries(t *testing.T) {
	qs := encodeQueries("123 MAIN ST, HOUSTON, TX 77001-1234")

	require.Len(t, qs, 3)
	assert.Equal(t, "123 MAIN ST, HOUSTON, TX 77001-1234", qs[0].Combined)
	assert.Equal(t, "123 MAIN ST", qs[1].Street)
	assert.Equal(t, "HOUSTON, TX 77001-1234", qs[1].Locality)
	assert.Equal(t, "HOUSTON", qs[2].City)
	assert.Equal(t, "77001", qs[2].Zip)
}

func TestEncodeQueriesNoLocality(t *testing.T) {
	qs := encodeQueries("UNPARSEABLE LEGAL TEXT")
	require.Len(t, qs, 1)
	assert.Equal(t, propdata.EncCombined, qs[0].Encoding)
}
