package propdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/resilience"
)

// lookupResponse is the provider's search response envelope.
type lookupResponse struct {
	Properties []propertyPayload `json:"properties"`
}

type propertyPayload struct {
	ParcelID     string `json:"parcel_id"`
	OwnerName    string `json:"owner_name"`
	SitusAddress string `json:"situs_address"`
	Assessment   struct {
		MarketValue          *float64 `json:"market_value"`
		FirstMortgageAmount  *float64 `json:"first_mortgage_amount"`
		SecondMortgageAmount *float64 `json:"second_mortgage_amount"`
	} `json:"assessment"`
}

// Lookup implements Client.
func (c *client) Lookup(ctx context.Context, q Query) (*PropertyRecord, error) {
	if !c.Available() {
		return nil, nil
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*PropertyRecord, error) {
		// The limiter gates every attempt, including retries, so backoff
		// never lets a burst through.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "propdata: rate limit")
		}
		return c.doLookup(ctx, q)
	})
}

func (c *client) doLookup(ctx context.Context, q Query) (*PropertyRecord, error) {
	params := url.Values{}
	switch q.Encoding {
	case EncCombined:
		params.Set("address", q.Combined)
	case EncSplit:
		params.Set("address1", q.Street)
		params.Set("address2", q.Locality)
	case EncComponents:
		params.Set("street", q.Street)
		params.Set("city", q.City)
		params.Set("zipcode", q.Zip)
	default:
		return nil, eris.Errorf("propdata: unknown encoding %d", q.Encoding)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/property/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "propdata: build request")
	}
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "propdata: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resilience.NewPermanentError(
			eris.Errorf("propdata: auth rejected with status %d", resp.StatusCode),
			resp.StatusCode,
		)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("propdata: status %d", resp.StatusCode),
			resp.StatusCode,
		)
	default:
		// Other 4xx: log and report no match so the caller moves to the
		// next encoding.
		zap.L().Warn("propdata: lookup rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("encoding", q.Encoding.String()),
		)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "propdata: read body"), 0)
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "propdata: parse response"), 0)
	}

	if len(lr.Properties) == 0 {
		return nil, nil
	}

	p := lr.Properties[0]
	return &PropertyRecord{
		ParcelID:     p.ParcelID,
		OwnerName:    p.OwnerName,
		SitusAddress: p.SitusAddress,
		Assessment: Assessment{
			MarketValue:          p.Assessment.MarketValue,
			FirstMortgageAmount:  p.Assessment.FirstMortgageAmount,
			SecondMortgageAmount: p.Assessment.SecondMortgageAmount,
		},
	}, nil
}
