package extract

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Generator produces a text reply for a prompt. Implementations must be safe
// for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetryableError indicates a transient failure that can be retried.
// RetryAfter is the server's requested wait, zero when it sent none.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// isTransientStatus reports whether an HTTP status is worth retrying.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Measured wraps a Generator and records every call in a CallStats window.
type Measured struct {
	gen   Generator
	stats *CallStats
	model string
}

// NewMeasured wraps gen. model is reported alongside the stats.
func NewMeasured(gen Generator, stats *CallStats, model string) *Measured {
	return &Measured{gen: gen, stats: stats, model: model}
}

func (m *Measured) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		m.stats.RecordFailure(err)
		return "", err
	}
	m.stats.Record(time.Since(start))
	return reply, nil
}

// Stats returns the call window.
func (m *Measured) Stats() *CallStats { return m.stats }

// Model returns the model name the wrapped generator calls.
func (m *Measured) Model() string { return m.model }
