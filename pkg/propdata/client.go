// Package propdata is the client for the property-data provider used to turn
// a postal address into a parcel identity and assessment figures.
package propdata

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/filings-cli/internal/resilience"
)

// Encoding selects how an address is encoded into provider request fields.
// The provider's address matching is brittle; callers try encodings in order
// until one returns a property record.
type Encoding int

const (
	// EncCombined sends the whole canonical address in one field.
	EncCombined Encoding = iota
	// EncSplit sends the street line and the "city, state zip" tail separately.
	EncSplit
	// EncComponents sends street, city, and ZIP as independent fields.
	EncComponents
)

// String returns the wire name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncCombined:
		return "combined"
	case EncSplit:
		return "split"
	case EncComponents:
		return "components"
	default:
		return "unknown"
	}
}

// Query is one encoded lookup attempt for a canonical address.
type Query struct {
	Encoding Encoding
	Combined string // EncCombined
	Street   string // EncSplit, EncComponents
	Locality string // EncSplit: "city, state zip"
	City     string // EncComponents
	Zip      string // EncComponents
}

// Assessment carries the mortgage and valuation figures of a property
// record. Nil means the provider did not report the figure.
type Assessment struct {
	MarketValue          *float64 `json:"market_value,omitempty"`
	FirstMortgageAmount  *float64 `json:"first_mortgage_amount,omitempty"`
	SecondMortgageAmount *float64 `json:"second_mortgage_amount,omitempty"`
}

// PropertyRecord is one property returned by the provider.
type PropertyRecord struct {
	ParcelID     string     `json:"parcel_id"`
	OwnerName    string     `json:"owner_name,omitempty"`
	SitusAddress string     `json:"situs_address,omitempty"`
	Assessment   Assessment `json:"assessment"`
}

// Client looks up property records by encoded address.
type Client interface {
	// Lookup returns the first property record matching the query, or nil
	// when the provider has no match. Transient failures are retried with
	// backoff; auth failures abort immediately.
	Lookup(ctx context.Context, q Query) (*PropertyRecord, error)

	// Available reports whether credentials are configured.
	Available() bool
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the request-per-second ceiling. The limiter is shared
// by every caller of this client; burst 1 makes it a token-interval gate
// rather than an allowance of spikes.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetryConfig overrides the transient-error retry policy.
func WithRetryConfig(rc resilience.RetryConfig) Option {
	return func(c *client) { c.retry = rc }
}

type client struct {
	key        string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a property-data client. An empty key leaves the client
// unavailable; lookups then return no match without network activity.
func NewClient(key string, opts ...Option) Client {
	c := &client{
		key:        key,
		baseURL:    "https://api.propertydata.example.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("propdata", "lookup")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Available() bool { return c.key != "" }
