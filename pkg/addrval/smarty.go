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

const smartyStreetURL = "https://us-street.api.smarty.com/street-address"

// SmartyProvider validates addresses via the Smarty US Street API.
type SmartyProvider struct {
	authID     string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewSmarty creates a SmartyProvider. Empty credentials leave the provider
// unavailable.
func NewSmarty(authID, authToken string) *SmartyProvider {
	return &SmartyProvider{
		authID:     authID,
		authToken:  authToken,
		baseURL:    smartyStreetURL,
		httpClient: defaultHTTPClient(),
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (p *SmartyProvider) WithBaseURL(u string) *SmartyProvider {
	p.baseURL = u
	return p
}

// Name implements Provider.
func (p *SmartyProvider) Name() string { return "smarty" }

// Available implements Provider.
func (p *SmartyProvider) Available() bool { return p.authID != "" && p.authToken != "" }

// smartyCandidate is one entry of the US Street API response array.
type smartyCandidate struct {
	DeliveryLine1 string `json:"delivery_line_1"`
	LastLine      string `json:"last_line"`
}

// Validate implements Provider. Smarty returns the standardized delivery
// line plus last line (city, state, ZIP) for deliverable addresses.
func (p *SmartyProvider) Validate(ctx context.Context, rawAddress string) (*Result, error) {
	params := url.Values{
		"auth-id":    {p.authID},
		"auth-token": {p.authToken},
		"street":     {rawAddress},
		"candidates": {"1"},
		"match":      {"enhanced"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: smarty build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: smarty request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("addrval: smarty returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "addrval: smarty read body")
	}

	var candidates []smartyCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "addrval: smarty parse response")
	}

	if len(candidates) == 0 || strings.TrimSpace(candidates[0].DeliveryLine1) == "" {
		return &Result{Source: "smarty", Matched: false}, nil
	}

	c := candidates[0]
	canonical := c.DeliveryLine1
	if c.LastLine != "" {
		canonical = fmt.Sprintf("%s, %s", c.DeliveryLine1, c.LastLine)
	}

	return &Result{
		CanonicalAddress: canonical,
		Source:           "smarty",
		Matched:          true,
	}, nil
}
