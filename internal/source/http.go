package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/resilience"
)

// HTTPSource fetches filing records from a JSON endpoint. The endpoint
// may return either a bare array of rows or an envelope with a
// "records" array.
type HTTPSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// NewHTTP creates an HTTPSource named name reading from baseURL.
func NewHTTP(name, baseURL string) *HTTPSource {
	s := &HTTPSource{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
	s.retry.OnRetry = resilience.RetryLogger("source", name)
	return s
}

// WithHTTPClient overrides the HTTP client.
func (s *HTTPSource) WithHTTPClient(hc *http.Client) *HTTPSource {
	s.httpClient = hc
	return s
}

// Name implements Source.
func (s *HTTPSource) Name() string { return s.name }

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, filters map[string]string, pageSize int) ([]model.RawFilingRecord, error) {
	params := url.Values{}
	for k, v := range filters {
		params.Set(k, v)
	}
	params.Set("page_size", strconv.Itoa(pageSize))

	rows, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]map[string]any, error) {
		return s.fetchPage(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.RawFilingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, NormalizeRecord(row))
	}
	zap.L().Debug("source: fetched records",
		zap.String("source", s.name),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (s *HTTPSource) fetchPage(ctx context.Context, params url.Values) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "source: %s request", s.name), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("source: %s status %d", s.name, resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("source: %s status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "source: read body"), 0)
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var envelope struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrapf(err, "source: %s parse response", s.name)
	}
	return envelope.Records, nil
}
