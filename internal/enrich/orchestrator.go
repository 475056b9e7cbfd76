// Package enrich runs the enrichment control loop: fetch raw filings,
// deduplicate, drop already-known cases, resolve and filter the rest,
// and repeat with escalating fetch sizes until the caller's target
// count of valid records is met or the attempt budget runs out.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filings-cli/internal/cache"
	"github.com/sells-group/filings-cli/internal/match"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/policy"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/store"
)

// Outcome is the terminal state of an enrichment run.
type Outcome string

const (
	// OutcomeDone means the target count was reached.
	OutcomeDone Outcome = "DONE"
	// OutcomePartial means the attempt budget or deadline ran out with
	// fewer records than requested.
	OutcomePartial Outcome = "PARTIAL"
	// OutcomeExhausted means the source stopped producing new records.
	OutcomeExhausted Outcome = "EXHAUSTED"
)

// Request describes one enrichment run.
type Request struct {
	TenantID string            `json:"tenant_id"`
	Source   string            `json:"source"`
	Filters  map[string]string `json:"filters,omitempty"`
	Target   int               `json:"target"`
}

// Result is what a run returns. Records is truncated to the target on
// DONE and holds whatever accumulated otherwise.
type Result struct {
	Outcome       Outcome                `json:"outcome"`
	Records       []model.EnrichedRecord `json:"records"`
	Attempts      int                    `json:"attempts"`
	TargetReached bool                   `json:"target_reached"`
	Reason        string                 `json:"reason,omitempty"`
}

// AddressResolver resolves a raw address. Satisfied by
// *resolve.Pipeline.
type AddressResolver interface {
	Enrich(ctx context.Context, rawAddress string) model.ResolvedAddress
}

// ParcelMatcher resolves a filing without an address to a parcel.
// Satisfied by *match.Matcher.
type ParcelMatcher interface {
	Match(ctx context.Context, rec model.RawFilingRecord) (*match.Match, error)
}

// Params bound the control loop.
type Params struct {
	BaseBatchSize int
	BatchCeiling  int
	HeavyCeiling  int
	MaxAttempts   int
	Workers       int
	SubBatchSize  int
	Delay         time.Duration
	RawTTL        time.Duration
}

// DefaultParams returns the loop bounds used when the caller does not
// override them.
func DefaultParams() Params {
	return Params{
		BaseBatchSize: 25,
		BatchCeiling:  200,
		HeavyCeiling:  500,
		MaxAttempts:   5,
		Workers:       5,
		SubBatchSize:  10,
		Delay:         150 * time.Millisecond,
		RawTTL:        24 * time.Hour,
	}
}

// Orchestrator drives enrichment runs.
type Orchestrator struct {
	sources  *source.Registry
	resolver AddressResolver
	matcher  ParcelMatcher
	filter   *policy.Filter
	store    store.Store
	cache    *cache.Cache
	params   Params
}

// New creates an Orchestrator. matcher may be nil when no parcel index
// is configured; records without an address then fail resolution with a
// descriptive error instead of a match attempt.
func New(sources *source.Registry, resolver AddressResolver, matcher ParcelMatcher,
	filter *policy.Filter, st store.Store, c *cache.Cache, params Params) *Orchestrator {
	if params.BaseBatchSize <= 0 {
		params = DefaultParams()
	}
	return &Orchestrator{
		sources:  sources,
		resolver: resolver,
		matcher:  matcher,
		filter:   filter,
		store:    st,
		cache:    c,
		params:   params,
	}
}

// Run executes one enrichment request. The only Go errors it returns
// are caller-input problems caught before any network activity; every
// operational failure degrades into the Result instead.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Target <= 0 {
		return nil, eris.Errorf("enrich: invalid target %d", req.Target)
	}
	src, err := o.sources.Get(req.Source)
	if err != nil {
		return nil, err
	}

	var (
		accumulated []model.EnrichedRecord
		seen        = make(map[string]bool)
		heavy       bool
	)

	for attempt := 1; attempt <= o.params.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return o.finish(OutcomePartial, accumulated, attempt-1, req, "cancelled"), nil
		}

		batchSize := o.batchSize(attempt, heavy)
		raw := o.fetch(ctx, src, req.Filters, batchSize, attempt)

		if ctx.Err() != nil {
			return o.finish(OutcomePartial, accumulated, attempt, req, "cancelled"), nil
		}

		fresh := dedup(raw, seen)
		if len(fresh) == 0 {
			reason := "source exhausted"
			if len(accumulated) > 0 {
				reason = fmt.Sprintf("source exhausted after %d records", len(accumulated))
			}
			return o.finish(OutcomeExhausted, accumulated, attempt, req, reason), nil
		}

		if ctx.Err() != nil {
			return o.finish(OutcomePartial, accumulated, attempt, req, "cancelled"), nil
		}

		candidates := o.dropKnown(ctx, req.TenantID, fresh)

		if ctx.Err() != nil {
			return o.finish(OutcomePartial, accumulated, attempt, req, "cancelled"), nil
		}

		kept, enriched := o.enrichBatch(ctx, req.TenantID, candidates)
		accumulated = append(accumulated, kept...)

		zap.L().Info("enrich: attempt complete",
			zap.Int("attempt", attempt),
			zap.Int("fetched", len(raw)),
			zap.Int("fresh", len(fresh)),
			zap.Int("candidates", len(candidates)),
			zap.Int("kept", len(kept)),
			zap.Int("accumulated", len(accumulated)),
		)

		if len(accumulated) >= req.Target {
			return o.finish(OutcomeDone, accumulated[:req.Target], attempt, req, ""), nil
		}

		// Records enriched but none surviving the policy filter means
		// the tenant's area is a small slice of the source's coverage,
		// so later attempts may fetch much larger batches.
		if enriched > 0 && len(kept) == 0 && !heavy {
			heavy = true
			zap.L().Info("enrich: heavy filtering detected, raising batch ceiling",
				zap.Int("ceiling", o.params.HeavyCeiling))
		}
	}

	reason := fmt.Sprintf("attempt budget exhausted with %d of %d records", len(accumulated), req.Target)
	return o.finish(OutcomePartial, accumulated, o.params.MaxAttempts, req, reason), nil
}

// batchSize doubles the base size per attempt up to the active ceiling.
func (o *Orchestrator) batchSize(attempt int, heavy bool) int {
	ceiling := o.params.BatchCeiling
	if heavy {
		ceiling = o.params.HeavyCeiling
	}
	size := o.params.BaseBatchSize
	for i := 1; i < attempt; i++ {
		size *= 2
		if size >= ceiling {
			return ceiling
		}
	}
	if size > ceiling {
		return ceiling
	}
	return size
}

// fetch pulls one batch from the source. The first attempt reads
// through the cache; later attempts bypass it so batch-size escalation
// actually reaches the producer. Any source failure counts as zero
// records for this attempt.
func (o *Orchestrator) fetch(ctx context.Context, src source.Source, filters map[string]string, batchSize, attempt int) []model.RawFilingRecord {
	key := fetchKey(src.Name(), filters)

	if attempt == 1 && o.cache != nil {
		if data, ok := o.cache.Get(ctx, key); ok {
			var cached []model.RawFilingRecord
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	records, err := src.Fetch(ctx, filters, batchSize)
	if err != nil {
		zap.L().Warn("enrich: source fetch failed",
			zap.String("source", src.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return nil
	}

	if attempt == 1 && o.cache != nil && len(records) > 0 {
		if data, err := json.Marshal(records); err == nil {
			o.cache.Set(ctx, key, data, o.params.RawTTL)
		}
	}
	return records
}

// fetchKey hashes the source name and its filters so equivalent fetches
// share a cache entry regardless of filter map order.
func fetchKey(sourceName string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
		b.WriteByte('&')
	}
	return cache.Key("fetch", sourceName, b.String())
}

// dedup drops records whose case number is empty, repeated within the
// batch, or already seen on a prior attempt, preserving order. Seen is
// updated in place.
func dedup(records []model.RawFilingRecord, seen map[string]bool) []model.RawFilingRecord {
	var fresh []model.RawFilingRecord
	for _, rec := range records {
		if rec.CaseNumber == "" || seen[rec.CaseNumber] {
			continue
		}
		seen[rec.CaseNumber] = true
		fresh = append(fresh, rec)
	}
	return fresh
}

// dropKnown removes records the store already holds for this tenant. A
// store failure keeps every candidate; the upsert makes re-enriching a
// known record harmless.
func (o *Orchestrator) dropKnown(ctx context.Context, tenantID string, records []model.RawFilingRecord) []model.RawFilingRecord {
	if len(records) == 0 {
		return records
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.CaseNumber
	}

	known, err := o.store.ExistingCaseNumbers(ctx, tenantID, ids)
	if err != nil {
		zap.L().Warn("enrich: known-filter query failed", zap.Error(err))
		return records
	}

	var out []model.RawFilingRecord
	for _, rec := range records {
		if !known[rec.CaseNumber] {
			out = append(out, rec)
		}
	}
	return out
}

// enrichBatch enriches candidates in fixed-size sub-batches with a
// bounded worker pool, then applies the policy filter. It returns the
// surviving records and how many candidates were enriched at all, which
// the caller uses to detect heavy filtering.
func (o *Orchestrator) enrichBatch(ctx context.Context, tenantID string, candidates []model.RawFilingRecord) ([]model.EnrichedRecord, int) {
	var (
		mu       sync.Mutex
		kept     []model.EnrichedRecord
		enriched int
	)

	for start := 0; start < len(candidates); start += o.params.SubBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + o.params.SubBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.params.Workers)

		for _, rec := range candidates[start:end] {
			rec := rec
			g.Go(func() error {
				record := o.enrichRecord(gctx, rec)

				mu.Lock()
				enriched++
				if o.filter.Allow(tenantID, record.Address) {
					kept = append(kept, record)
				} else {
					zap.L().Debug("enrich: record filtered by policy",
						zap.String("case_number", record.Legal.CaseNumber),
						zap.String("tenant_id", tenantID))
				}
				mu.Unlock()

				// Breathing room between sequential enrichments on the
				// same worker keeps providers from throttling bursts.
				select {
				case <-gctx.Done():
				case <-time.After(o.params.Delay):
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return kept, enriched
}

// finish persists terminal results and builds the Result. Persistence
// failures are logged per record and never discard the in-memory
// result. EXHAUSTED runs skip persistence; their partial batch gets
// stored when a later run converges on it.
func (o *Orchestrator) finish(outcome Outcome, records []model.EnrichedRecord, attempts int, req Request, reason string) *Result {
	if outcome != OutcomeExhausted && len(records) > 0 {
		o.persist(context.Background(), req.TenantID, records)
	}
	return &Result{
		Outcome:       outcome,
		Records:       records,
		Attempts:      attempts,
		TargetReached: outcome == OutcomeDone,
		Reason:        reason,
	}
}

// persist upserts each record in its own transaction so one failure
// cannot block or roll back its batch-mates. It runs on a fresh context
// so a cancelled run still lands what it accumulated.
func (o *Orchestrator) persist(ctx context.Context, tenantID string, records []model.EnrichedRecord) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var failed int
	for _, rec := range records {
		if err := o.store.UpsertRecord(ctx, tenantID, rec); err != nil {
			failed++
			zap.L().Error("enrich: persist failed",
				zap.String("case_number", rec.Legal.CaseNumber),
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
	zap.L().Info("enrich: persisted records",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(records)-failed),
		zap.Int("failed", failed),
	)
}
