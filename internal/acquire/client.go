// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/paperfetch/internal/httputil"
	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	// DefaultAPITimeout bounds each metadata service request.
	DefaultAPITimeout = 30 * time.Second

	// DefaultRateLimit is the request rate per metadata service used by the
	// download command unless --rate overrides it.
	DefaultRateLimit = 5.0

	defaultAPIUserAgent = "paperfetch/0.1"
)

// apiClient holds what the Unpaywall, OpenAlex and CrossRef clients share.
type apiClient struct {
	httpClient   *http.Client
	baseURL      string
	email        string
	userAgent    string
	rateLimit    float64
	maxRetries   int
	landingPages bool
	logger       *slog.Logger
	retrier      *httputil.Retrier
}

// ClientOption configures a metadata service client.
type ClientOption func(*apiClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *apiClient) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *apiClient) {
		c.baseURL = url
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *apiClient) {
		c.rateLimit = perSecond
	}
}

// WithMaxRetries bounds retries on HTTP 429.
func WithMaxRetries(n int) ClientOption {
	return func(c *apiClient) {
		c.maxRetries = n
	}
}

// WithLandingPages lets resolvers offer landing-page URLs for locations that
// have no direct PDF link.
func WithLandingPages(enabled bool) ClientOption {
	return func(c *apiClient) {
		c.landingPages = enabled
	}
}

// WithLogger sets the logger used for backoff warnings.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *apiClient) {
		c.logger = l
	}
}

func newAPIClient(baseURL string, cfg types.ResolverConfig, opts []ClientOption) apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultAPIUserAgent
	}
	c := apiClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		email:      cfg.Email,
		userAgent:  userAgent,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
	}
	for _, opt := range opts {
		opt(&c)
	}

	c.retrier = httputil.NewRetrier(c.httpClient, c.rateLimit, c.maxRetries)
	c.retrier.Logger = c.logger
	return c
}

// getJSON performs a GET and decodes a 200 response into v. Non-200
// responses are returned as *TransportError so callers can map status codes.
func (c *apiClient) getJSON(ctx context.Context, apiURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return &TransportError{URL: apiURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &TransportError{URL: apiURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing response from %s: %w", req.URL.Host, err)
	}
	return nil
}

// candidateList collects URLs in service order, dropping empties and repeats.
type candidateList struct {
	seen       map[string]bool
	primary    *types.Candidate
	alternates []types.Candidate
}

func (l *candidateList) add(c types.Candidate) {
	if c.URL == "" {
		return
	}
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	if l.seen[c.URL] {
		return
	}
	l.seen[c.URL] = true

	if c.Rank == types.RankPrimary {
		l.primary = &c
		return
	}
	c.Ordinal = len(l.alternates) + 1
	l.alternates = append(l.alternates, c)
}

func (l *candidateList) resolution(doi string) types.Resolution {
	return types.Resolution{DOI: doi, Primary: l.primary, Alternates: l.alternates}
}

func (l *candidateList) empty() bool {
	return l.primary == nil && len(l.alternates) == 0
}
