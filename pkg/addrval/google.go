package addrval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider validates addresses via the Google Geocoding API.
type GoogleProvider struct {
	key        string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogle creates a GoogleProvider. An empty key leaves the provider
// unavailable.
func NewGoogle(key string) *GoogleProvider {
	return &GoogleProvider{
		key:        key,
		baseURL:    googleGeocodeURL,
		httpClient: defaultHTTPClient(),
		limiter:    rate.NewLimiter(25, 25),
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (p *GoogleProvider) WithBaseURL(u string) *GoogleProvider {
	p.baseURL = u
	return p
}

// WithHTTPClient overrides the HTTP client.
func (p *GoogleProvider) WithHTTPClient(hc *http.Client) *GoogleProvider {
	p.httpClient = hc
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.key != "" }

type googleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// Validate implements Provider using the formatted_address of the top result.
func (p *GoogleProvider) Validate(ctx context.Context, rawAddress string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "addrval: google rate limit")
	}

	params := url.Values{
		"address": {rawAddress},
		"key":     {p.key},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("addrval: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "addrval: google parse response")
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Result{Source: "google", Matched: false}, nil
	}

	return &Result{
		CanonicalAddress: googleResp.Results[0].FormattedAddress,
		Source:           "google",
		Matched:          true,
	}, nil
}
