package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/pkg/route-search/models"
)

const (
	DefaultBaseURL = "https://transit.yahoo.co.jp"
	searchPath     = "/search/result"
	suggestPath    = "/api/suggest"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"
	maxBodyBytes     = 16 << 20
)

var validate = validator.New()

type Config struct {
	BaseURL              string
	UserAgent            string
	AcceptLanguage       string
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RequestsPerMinute    int
	// MaxRetryAfter is the longest Retry-After the client waits out itself.
	// Longer requests are returned to the caller.
	MaxRetryAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		UserAgent:            defaultUserAgent,
		AcceptLanguage:       "ja,en-US;q=0.9,en;q=0.8",
		Timeout:              30 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RequestsPerMinute:    30,
		MaxRetryAfter:        30 * time.Second,
	}
}

// Client fetches search result pages and station suggestions from the
// transit site.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     logger.Logger
	limiter    *rate.Limiter
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 30 * time.Second
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger:  log,
		limiter: newRateLimiter(cfg.RequestsPerMinute, time.Minute),
	}
}

// ValidateQuery checks the required and formatted fields of a search query.
func ValidateQuery(q models.SearchQuery) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}

// FetchSearchPage returns the raw search results markup for q.
func (c *Client) FetchSearchPage(ctx context.Context, q models.SearchQuery) (string, error) {
	if err := ValidateQuery(q); err != nil {
		return "", err
	}

	params := url.Values{}
	for k, v := range q.Params() {
		params.Set(k, v)
	}

	body, err := c.get(ctx, searchPath, params, "text/html,application/xhtml+xml,*/*;q=0.8")
	if err != nil {
		return "", fmt.Errorf("fetching search page %s -> %s: %w", q.From, q.To, err)
	}

	c.logger.Debug("Search page fetched", "from", q.From, "to", q.To, "bytes", len(body))
	return string(body), nil
}

// FetchSuggestions returns station name candidates for value.
func (c *Client) FetchSuggestions(ctx context.Context, value string) (models.StationSuggestions, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyStation
	}

	body, err := c.get(ctx, suggestPath, url.Values{"value": {value}}, "application/json, text/plain, */*")
	if err != nil {
		return nil, fmt.Errorf("fetching suggestions for %q: %w", value, err)
	}

	var suggestions models.StationSuggestions
	if err := json.Unmarshal(body, &suggestions); err != nil {
		return nil, fmt.Errorf("decoding suggestions: %w", err)
	}
	return suggestions, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, accept string) ([]byte, error) {
	target := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	b := c.newBackOff()

	var body []byte
	operation := func() error {
		if err := waitTurn(ctx, c.limiter); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.do(ctx, target, accept)
		if err == nil {
			body = resp
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		var rateLimited *RateLimitError
		if errors.As(err, &rateLimited) {
			if rateLimited.RetryAfter > c.config.MaxRetryAfter {
				return backoff.Permanent(err)
			}
			b.floor = rateLimited.RetryAfter
			return err
		}
		if !retryable(err) {
			var permanent *backoff.PermanentError
			if errors.As(err, &permanent) {
				return err
			}
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Request failed, retrying", "url", target, "retry_in", wait.String(), "error", err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) newBackOff() *retryAfterBackOff {
	b := backoff.NewExponentialBackOff()
	if c.config.RetryInitialInterval > 0 {
		b.InitialInterval = c.config.RetryInitialInterval
	}
	b.MaxElapsedTime = 2 * time.Minute

	retries := c.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &retryAfterBackOff{BackOff: backoff.WithMaxRetries(b, uint64(retries))}
}

func (c *Client) do(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", c.config.AcceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", strings.TrimRight(c.config.BaseURL, "/")+"/")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug("Executing request", "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error("Upstream returned error status",
			"status_code", resp.StatusCode,
			"url", target,
			"response_body", truncate(string(body), 100))
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return body, nil
}

func retryable(err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return true
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode >= 500
	}

	// transport failures
	return true
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
