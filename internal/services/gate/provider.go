package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"hermes/internal/domain/sentiment"
	"hermes/pkg/errors"
)

// Provider fetches the current Fear & Greed reading from one upstream.
// Providers are tried in priority order on each refresh.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (*sentiment.Reading, error)
}

// AlternativeMeProvider reads the Crypto Fear & Greed Index from
// Alternative.me. Free API, no authentication required.
type AlternativeMeProvider struct {
	httpClient *http.Client
	url        string
}

// NewAlternativeMeProvider creates the default sentiment provider
func NewAlternativeMeProvider(timeout time.Duration) *AlternativeMeProvider {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AlternativeMeProvider{
		httpClient: &http.Client{Timeout: timeout},
		url:        "https://api.alternative.me/fng/?limit=1",
	}
}

// Name returns the provider identifier used as the reading source
func (p *AlternativeMeProvider) Name() string {
	return "alternative.me"
}

type fngResponse struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
	Metadata struct {
		Error string `json:"error"`
	} `json:"metadata"`
}

// Fetch retrieves the latest index value
func (p *AlternativeMeProvider) Fetch(ctx context.Context) (*sentiment.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	if apiResp.Metadata.Error != "" {
		return nil, fmt.Errorf("API error: %s", apiResp.Metadata.Error)
	}
	if len(apiResp.Data) == 0 {
		return nil, errors.New("no data in API response")
	}

	item := apiResp.Data[0]

	value, err := strconv.Atoi(item.Value)
	if err != nil {
		return nil, errors.Wrap(err, "parse index value")
	}
	if value < 0 || value > 100 {
		return nil, errors.Newf("index value %d out of range", value)
	}

	observedAt := time.Now()
	if ts, err := strconv.ParseInt(item.Timestamp, 10, 64); err == nil {
		observedAt = time.Unix(ts, 0)
	}

	return sentiment.NewReading(value, p.Name(), observedAt), nil
}
