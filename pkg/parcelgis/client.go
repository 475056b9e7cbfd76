// Package parcelgis queries a county parcel/GIS feature service for
// candidate parcels by owner-name and legal-description predicates.
package parcelgis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/resilience"
)

// Candidate is one parcel record returned by a search.
type Candidate struct {
	AccountNumber string `json:"account_number"`
	OwnerName     string `json:"owner_name"`
	LegalText     string `json:"legal_text"`
	SitusNumber   string `json:"situs_number"`
	SitusStreet   string `json:"situs_street"`
	SitusCity     string `json:"situs_city"`
	SitusZip      string `json:"situs_zip"`
}

// Address assembles the candidate's situs address, or "" when the street is
// unknown.
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

// Client searches a parcel index with a filter expression and returns a
// capped candidate list.
type Client interface {
	Search(ctx context.Context, where string, limit int) ([]Candidate, error)
}

// ArcGISClient implements Client against an ArcGIS FeatureServer layer
// query endpoint.
type ArcGISClient struct {
	queryURL   string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// NewArcGIS creates an ArcGISClient for the given layer query URL.
func NewArcGIS(queryURL string) *ArcGISClient {
	c := &ArcGISClient{
		queryURL:   queryURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("parcelgis", "search")
	return c
}

// WithHTTPClient overrides the HTTP client.
func (c *ArcGISClient) WithHTTPClient(hc *http.Client) *ArcGISClient {
	c.httpClient = hc
	return c
}

type arcgisResponse struct {
	Features []struct {
		Attributes struct {
			AccountNumber string `json:"ACCOUNT_NUM"`
			OwnerName     string `json:"OWNER_NAME"`
			LegalText     string `json:"LEGAL_DESC"`
			SitusNumber   string `json:"SITUS_NUM"`
			SitusStreet   string `json:"SITUS_STREET"`
			SitusCity     string `json:"SITUS_CITY"`
			SitusZip      string `json:"SITUS_ZIP"`
		} `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search implements Client.
func (c *ArcGISClient) Search(ctx context.Context, where string, limit int) ([]Candidate, error) {
	params := url.Values{
		"where":             {where},
		"outFields":         {"*"},
		"f":                 {"json"},
		"returnGeometry":    {"false"},
		"resultRecordCount": {strconv.Itoa(limit)},
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Candidate, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "parcelgis: build request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "parcelgis: request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("parcelgis: status %d", resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("parcelgis: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "parcelgis: read body"), 0)
		}

		var ar arcgisResponse
		if err := json.Unmarshal(body, &ar); err != nil {
			return nil, eris.Wrap(err, "parcelgis: parse response")
		}
		if ar.Error != nil {
			return nil, eris.Errorf("parcelgis: server error %d: %s", ar.Error.Code, ar.Error.Message)
		}

		candidates := make([]Candidate, 0, len(ar.Features))
		for _, f := range ar.Features {
			a := f.Attributes
			candidates = append(candidates, Candidate{
				AccountNumber: a.AccountNumber,
				OwnerName:     a.OwnerName,
				LegalText:     a.LegalText,
				SitusNumber:   a.SitusNumber,
				SitusStreet:   a.SitusStreet,
				SitusCity:     a.SitusCity,
				SitusZip:      a.SitusZip,
			})
		}
		return candidates, nil
	})
}
