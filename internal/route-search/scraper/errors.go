package scraper

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidQuery wraps validation failures of a search query.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrEmptyStation is returned for an empty suggestion lookup.
	ErrEmptyStation = errors.New("station query is empty")
)

// RequestError is a non-successful upstream HTTP response.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is an HTTP 429 from upstream.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "rate limit exceeded"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
