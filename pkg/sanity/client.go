package sanity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pranshlabs/storefront-backend/pkg/config"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/sethvargo/go-retry"
)

// Client issues GROQ queries against the content store's HTTP query API.
// Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff before the error is surfaced to the caller.
type Client struct {
	httpc       *http.Client
	queryURL    string
	token       string
	maxAttempts int
	retryBase   time.Duration
	logg        *logger.Logger
}

// New validates the configuration and builds a query client.
func New(cfg config.SanityConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("sanity project id is required")
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, fmt.Errorf("sanity dataset is required")
	}

	host := "api.sanity.io"
	if cfg.UseCDN {
		host = "apicdn.sanity.io"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	return &Client{
		httpc:       &http.Client{Timeout: timeout},
		queryURL:    fmt.Sprintf("https://%s.%s/v%s/data/query/%s", projectID, host, cfg.APIVersion, dataset),
		token:       strings.TrimSpace(cfg.Token),
		maxAttempts: attempts,
		retryBase:   base,
		logg:        logg,
	}, nil
}

// NewWithEndpoint builds a client against an explicit query URL. Used by
// tests and by deployments that front the content store with a proxy.
func NewWithEndpoint(queryURL string, timeout time.Duration, maxAttempts int, retryBase time.Duration, logg *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}
	return &Client{
		httpc:       &http.Client{Timeout: timeout},
		queryURL:    queryURL,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		logg:        logg,
	}
}

type queryEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// statusError is a non-200 response from the query API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("content store returned status %d", e.status)
	}
	return fmt.Sprintf("content store returned status %d: %s", e.status, e.body)
}

// transient reports whether retrying could help. Rate limits and server
// errors are transient; other 4xx responses mean the request itself is bad.
func (e *statusError) transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= http.StatusInternalServerError
}

// Query runs a GROQ expression with the given parameter map and returns
// the raw result document. Parameters are JSON-encoded per the query API
// contract. A nil result with a nil error means the query matched nothing.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding query param %q: %w", name, err)
		}
		values.Set("$"+name, string(encoded))
	}
	target := c.queryURL + "?" + values.Encode()

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewExponential(c.retryBase))
	backoff = retry.WithJitterPercent(20, backoff)

	var result json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		raw, err := c.fetchOnce(ctx, target)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !se.transient() {
				return err
			}
			if c.logg != nil {
				c.logg.Warn(ctx, fmt.Sprintf("content store query failed, will retry: %v", err))
			}
			return retry.RetryableError(err)
		}
		result = raw
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content store query: %w", err)
	}
	return result, nil
}

func (c *Client) fetchOnce(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var envelope queryEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding content store response: %w", err)
	}
	return envelope.Result, nil
}

// Ping issues a trivial query to verify the content store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Query(ctx, "count(*[_type == \"product\"][0...1])", nil)
	return err
}
