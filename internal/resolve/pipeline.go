// Package resolve turns a raw filing address into a resolved address
// with ownership and equity figures. Resolution degrades instead of
// failing: whatever could not be determined is left empty or nil and
// noted on the result, and the caller never sees a Go error.
package resolve

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/cache"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/resilience"
	"github.com/sells-group/filings-cli/pkg/addrval"
	"github.com/sells-group/filings-cli/pkg/propdata"
)

// Validator validates a raw address. Satisfied by *addrval.Chain.
type Validator interface {
	Validate(ctx context.Context, raw string) *addrval.Result
}

// Pipeline resolves addresses through validation, property lookup, and
// equity derivation.
type Pipeline struct {
	validator   Validator
	property    propdata.Client
	cache       *cache.Cache
	addressTTL  time.Duration
	propertyTTL time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAddressTTL sets how long validated addresses stay cached.
func WithAddressTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.addressTTL = d }
}

// WithPropertyTTL sets how long property records stay cached.
func WithPropertyTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.propertyTTL = d }
}

// New creates a Pipeline. Property records change on the assessor's
// schedule, so they default to a week in cache against a day for
// validated addresses.
func New(validator Validator, property propdata.Client, c *cache.Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator:   validator,
		property:    property,
		cache:       c,
		addressTTL:  24 * time.Hour,
		propertyTTL: 168 * time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enrich resolves one raw address. The returned value always has
// ResolutionSource set when any address came back; numeric fields stay
// nil wherever the inputs to derive them were missing.
func (p *Pipeline) Enrich(ctx context.Context, rawAddress string) model.ResolvedAddress {
	rawAddress = strings.TrimSpace(rawAddress)
	if rawAddress == "" {
		return model.ResolvedAddress{Error: "no address"}
	}

	validated := p.validate(ctx, rawAddress)
	resolved := model.ResolvedAddress{
		CanonicalAddress: validated.CanonicalAddress,
		ResolutionSource: validated.Source,
	}

	record, err := p.lookupProperty(ctx, validated.CanonicalAddress)
	if err != nil {
		zap.L().Warn("resolve: property lookup failed",
			zap.String("address", validated.CanonicalAddress),
			zap.Error(err))
		resolved.Error = "property lookup failed"
		return resolved
	}
	if record == nil {
		resolved.Error = "property record not found"
		return resolved
	}

	resolved.ParcelID = record.ParcelID
	resolved.OwnerName = record.OwnerName
	if record.SitusAddress != "" {
		resolved.CanonicalAddress = record.SitusAddress
	}
	deriveEquity(&resolved, record.Assessment)
	return resolved
}

// validate runs the provider chain with a cache in front so repeat
// filings against the same address cost one provider call per TTL.
func (p *Pipeline) validate(ctx context.Context, rawAddress string) addrval.Result {
	key := cache.Key("addrval", strings.ToUpper(rawAddress))

	if data, ok := p.cache.Get(ctx, key); ok {
		var cached addrval.Result
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached
		}
	}

	result := p.validator.Validate(ctx, rawAddress)
	if result == nil {
		result = &addrval.Result{CanonicalAddress: rawAddress, Source: "raw"}
	}
	// Only matched results are cached. A raw fallback usually means the
	// providers were down, and pinning it for the full TTL would keep
	// serving the degraded canonicalization after they recover.
	if result.Matched {
		if data, err := json.Marshal(result); err == nil {
			p.cache.Set(ctx, key, data, p.addressTTL)
		}
	}
	return *result
}

// lookupProperty tries the provider's query encodings in order until one
// returns a record. A cached miss is cached too; retrying a known miss
// every batch would burn the rate budget for nothing.
func (p *Pipeline) lookupProperty(ctx context.Context, canonical string) (*propdata.PropertyRecord, error) {
	key := cache.Key("propdata", strings.ToUpper(canonical))

	if data, ok := p.cache.Get(ctx, key); ok {
		var cached cachedProperty
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.Record, nil
		}
	}

	var (
		record  *propdata.PropertyRecord
		lastErr error
		errored int
	)
	queries := encodeQueries(canonical)
	for _, q := range queries {
		found, err := p.property.Lookup(ctx, q)
		if err != nil {
			// Auth rejections and cancellation end the lookup. Anything
			// else is this encoding's problem; the next one may still hit.
			if resilience.IsPermanent(err) || ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("resolve: property query failed, trying next encoding",
				zap.String("encoding", q.Encoding.String()),
				zap.Error(err))
			lastErr = err
			errored++
			continue
		}
		if found != nil {
			record = found
			break
		}
	}

	if record == nil && errored == len(queries) {
		return nil, lastErr
	}

	// Cache hits, and misses confirmed by every encoding. A miss that only
	// holds because some encodings errored is not confirmed and stays
	// uncached so the next run retries.
	if record != nil || errored == 0 {
		if data, err := json.Marshal(cachedProperty{Record: record}); err == nil {
			p.cache.Set(ctx, key, data, p.propertyTTL)
		}
	}
	return record, nil
}

// cachedProperty wraps the record so a cached nil (a confirmed miss) is
// distinguishable from a cache miss.
type cachedProperty struct {
	Record *propdata.PropertyRecord `json:"record"`
}

// deriveEquity fills the financial fields from the assessment. Loan
// balance is the sum of recorded mortgages; equity and LTV need both a
// market value and a balance, and are left nil otherwise.
func deriveEquity(r *model.ResolvedAddress, a propdata.Assessment) {
	r.MarketValue = a.MarketValue

	var balance *float64
	if a.FirstMortgageAmount != nil {
		total := *a.FirstMortgageAmount
		if a.SecondMortgageAmount != nil {
			total += *a.SecondMortgageAmount
		}
		balance = model.Float64(total)
	} else if a.SecondMortgageAmount != nil {
		balance = model.Float64(*a.SecondMortgageAmount)
	}
	r.LoanBalance = balance

	if a.MarketValue == nil || balance == nil {
		return
	}
	r.AvailableEquity = model.Float64(*a.MarketValue - *balance)
	if *a.MarketValue > 0 {
		r.LTV = model.Float64(*balance / *a.MarketValue)
	}
}
