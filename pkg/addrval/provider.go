// Package addrval normalizes free-text addresses through an ordered chain of
// validation providers (Google Geocoding, Smarty, USPS).
package addrval

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of validating one raw address.
type Result struct {
	CanonicalAddress string `json:"canonical_address"`
	Source           string `json:"source"`
	Matched          bool   `json:"matched"`
}

// Provider is a single address-validation backend. A provider without
// credentials reports Available() == false and is skipped, not an error.
type Provider interface {
	Name() string
	Available() bool
	Validate(ctx context.Context, rawAddress string) (*Result, error)
}

// Chain tries providers in priority order and returns the first normalized
// match. If every provider fails or misses, the canonical address is the raw
// input; validation never blocks enrichment.
type Chain struct {
	providers []Provider
}

// NewChain creates a Chain trying providers in the given order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Validate runs the fallback chain for one raw address.
func (c *Chain) Validate(ctx context.Context, rawAddress string) *Result {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Validate(ctx, rawAddress)
		if err != nil {
			zap.L().Debug("addrval: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			return result
		}
	}

	return &Result{CanonicalAddress: rawAddress, Source: "raw", Matched: false}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
