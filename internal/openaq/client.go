// Package openaq provides a client for the OpenAQ v3 API. Only the
// location/sensor hierarchy used by the exploration pipeline is covered.
package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Edwouard/SenegalAirWatch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ v3 API.
	DefaultBaseURL = "https://api.openaq.org/v3"

	// DefaultPageLimit is the page size requested from paginated endpoints.
	DefaultPageLimit = 100

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	apiKeyHeader = "X-API-Key"
)

// Sentinel errors surfaced to the walker for failure classification.
var (
	// ErrAuth is returned for 401/403 responses. Authentication failures are
	// a hard run failure, not a per-resource one.
	ErrAuth = errors.New("openaq: authentication failed")

	// ErrQuotaExceeded is returned when the API reports 429 after the retry
	// budget is exhausted. Quota exhaustion is global, not per-resource.
	ErrQuotaExceeded = errors.New("openaq: request quota exceeded")
)

// StatusError is a non-2xx response that is neither an auth nor a quota
// failure. 4xx codes are permanent for the resource; 5xx survived retries.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openaq: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Permanent reports whether the error should not be retried for this resource.
func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// APIKey is sent on every request. Required against the real API.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with
	// retry and circuit breaking is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// MaxRetries bounds retry attempts for transient failures (default: 3).
	MaxRetries uint64

	// PageLimit is the page size for paginated endpoints.
	PageLimit int

	Logger zerolog.Logger
}

// Client is an OpenAQ v3 API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	pageLimit  int
	logger     zerolog.Logger
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		maxRetries := cfg.MaxRetries
		if maxRetries == 0 {
			maxRetries = 3
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      maxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		pageLimit:  pageLimit,
		logger:     cfg.Logger,
	}
}

// PageLimit returns the configured page size.
func (c *Client) PageLimit() int {
	return c.pageLimit
}

// FetchLocationsPage fetches one page of locations for a country. It returns
// the decoded locations and whether more pages remain.
func (c *Client) FetchLocationsPage(ctx context.Context, iso string, page int) ([]Location, bool, error) {
	url := fmt.Sprintf("%s/locations?iso=%s&limit=%d&page=%d&order_by=id&sort_order=asc",
		c.baseURL, iso, c.pageLimit, page)

	body, meta, err := c.get(ctx, url)
	if err != nil {
		return nil, false, err
	}

	locations := make([]Location, 0, len(body))
	for _, raw := range body {
		var loc Location
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, false, fmt.Errorf("decode location: %w", err)
		}
		loc.Fields = fieldNames(raw)
		locations = append(locations, loc)
	}

	return locations, morePages(meta, page, c.pageLimit, len(body)), nil
}

// FetchSensorsPage fetches one page of sensors for a location.
func (c *Client) FetchSensorsPage(ctx context.Context, locationID, page int) ([]Sensor, bool, error) {
	url := fmt.Sprintf("%s/locations/%d/sensors?limit=%d&page=%d",
		c.baseURL, locationID, c.pageLimit, page)

	body, meta, err := c.get(ctx, url)
	if err != nil {
		return nil, false, err
	}

	sensors := make([]Sensor, 0, len(body))
	for _, raw := range body {
		var s Sensor
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false, fmt.Errorf("decode sensor: %w", err)
		}
		s.Fields = fieldNames(raw)
		sensors = append(sensors, s)
	}

	return sensors, morePages(meta, page, c.pageLimit, len(body)), nil
}

// get issues an authenticated GET and maps the status code to the error
// taxonomy. The raw results and pagination metadata are returned on success.
func (c *Client) get(ctx context.Context, url string) ([]json.RawMessage, pageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, pageMeta{}, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pageMeta{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, pageMeta{}, fmt.Errorf("%w (status %d)", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, pageMeta{}, ErrQuotaExceeded
	default:
		return nil, pageMeta{}, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	var envelope struct {
		Meta    pageMeta          `json:"meta"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pageMeta{}, fmt.Errorf("decode response from %s: %w", url, err)
	}

	return envelope.Results, envelope.Meta, nil
}

// morePages decides whether another page should be fetched. The found total
// is used when the API reported an exact count; otherwise a full page means
// there may be more.
func morePages(meta pageMeta, page, limit, got int) bool {
	if got == 0 {
		return false
	}
	if found, exact := meta.foundCount(); exact {
		return page*limit < found
	}
	return got == limit
}
