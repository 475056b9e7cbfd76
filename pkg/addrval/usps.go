package addrval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const uspsAddressURL = "https://apis.usps.com/addresses/v3/address"

// USPSProvider validates addresses via the USPS Addresses 3.0 API. It is the
// last resort in the chain: free, but strict about input shape.
type USPSProvider struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewUSPS creates a USPSProvider. An empty OAuth token leaves the provider
// unavailable.
func NewUSPS(token string) *USPSProvider {
	return &USPSProvider{
		token:      token,
		baseURL:    uspsAddressURL,
		httpClient: defaultHTTPClient(),
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (p *USPSProvider) WithBaseURL(u string) *USPSProvider {
	p.baseURL = u
	return p
}

// Name implements Provider.
func (p *USPSProvider) Name() string { return "usps" }

// Available implements Provider.
func (p *USPSProvider) Available() bool { return p.token != "" }

type uspsAddressResponse struct {
	Address struct {
		StreetAddress string `json:"streetAddress"`
		City          string `json:"city"`
		State         string `json:"state"`
		ZIPCode       string `json:"ZIPCode"`
		ZIPPlus4      string `json:"ZIPPlus4"`
	} `json:"address"`
}

// Validate implements Provider. USPS wants the street split from the
// city/state tail, so the raw line is split on its first comma.
func (p *USPSProvider) Validate(ctx context.Context, rawAddress string) (*Result, error) {
	street, tail := splitStreet(rawAddress)

	params := url.Values{"streetAddress": {street}}
	if tail != "" {
		params.Set("city", tail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: usps build request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: usps request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return &Result{Source: "usps", Matched: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("addrval: usps returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: usps read body")
	}

	var uspsResp uspsAddressResponse
	if err := json.Unmarshal(body, &uspsResp); err != nil {
		return nil, eris.Wrap(err, "addrval: usps parse response")
	}

	a := uspsResp.Address
	if strings.TrimSpace(a.StreetAddress) == "" {
		return &Result{Source: "usps", Matched: false}, nil
	}

	zip := a.ZIPCode
	if a.ZIPPlus4 != "" {
		zip = zip + "-" + a.ZIPPlus4
	}
	canonical := fmt.Sprintf("%s, %s, %s %s", a.StreetAddress, a.City, a.State, zip)

	return &Result{
		CanonicalAddress: canonical,
		Source:           "usps",
		Matched:          true,
	}, nil
}

// splitStreet separates the street line from the city/state tail.
func splitStreet(raw string) (street, tail string) {
	parts := strings.SplitN(raw, ",", 2)
	street = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		tail = strings.TrimSpace(parts[1])
	}
	return street, tail
}
