package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when ClientConfig.UserAgent is empty.
const DefaultUserAgent = "rank-lookup/1.0 (+https://github.com/Sternrassler/rank-lookup)"

// ClientConfig holds the outbound HTTP client configuration.
type ClientConfig struct {
	// UserAgent header sent with every request.
	UserAgent string

	// RequestsPerSecond bounds outbound request rate across all sources
	// sharing the client. Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size.
	Burst int

	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// Retry selects backoff per error class. Nil uses RetryConfigForErrorClass.
	Retry RetryPolicy
}

// DefaultClientConfig returns a polite default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 2,
		Burst:             4,
		Timeout:           10 * time.Second,
		MaxBodyBytes:      4 << 20,
	}
}

// Client is a rate limited HTTP client with retry used by the HTTP based sources.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a new outbound client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		config:     cfg,
		logger:     logger.With().Str("component", "datasource-client").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Get fetches url and returns the response body of a 2xx response.
// Non-2xx responses are returned as *SourceError. Server, rate limit and
// network failures are retried with backoff.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	var body []byte

	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		b, err := c.do(ctx, url, header)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(err error) ErrorClass {
		if ctx.Err() != nil {
			// stop retrying once the caller gave up
			return ""
		}
		return classifyError(err)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", url).Msg("HTTP request failed")
		return nil, &SourceError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if class := classifyStatus(resp.StatusCode); class != "" {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxBodyBytes))
		c.logger.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream returned error status")
		return nil, &SourceError{StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, &SourceError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}
	return body, nil
}
