package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClaudeClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, 512, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		w.Write([]byte(`{"content":[{"type":"text","text":"Main Topic: "},{"type":"text","text":"X"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("test-key", "claude-test", WithClaudeBaseURL(srv.URL+"/"), WithClaudeMaxTokens(512))
	defer c.Close()

	reply, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Main Topic: X", reply)
	assert.Equal(t, "claude-test", c.Model())
}

func TestClaudeClientStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":{"type":"x","message":"nope"}}`))
			}))
			defer srv.Close()

			c := NewClaudeClient("k", "", WithClaudeBaseURL(srv.URL))
			_, err := c.Generate(context.Background(), "p")
			require.Error(t, err)

			var re *RetryableError
			assert.Equal(t, tc.retryable, errors.As(err, &re))
			if tc.retryable {
				assert.Equal(t, tc.status, re.StatusCode)
			}
		})
	}
}

func TestClaudeClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "", WithClaudeBaseURL(srv.URL)).Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "empty response")
}

func TestOpenAIClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIModel, req.Model)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"content":"SKIP"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "", srv.URL+"/v1")
	defer c.Close()

	reply, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "SKIP", reply)
}

func TestOpenAIClientRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", "", srv.URL).Generate(context.Background(), "p")
	var re *RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
}

func TestClassifyGeminiError(t *testing.T) {
	quota, ok := apierror.FromError(status.Error(codes.ResourceExhausted, "quota"))
	require.True(t, ok)
	var re *RetryableError
	require.True(t, errors.As(classifyGeminiError(quota), &re))
	assert.Equal(t, 429, re.StatusCode)

	unavailable, ok := apierror.FromError(status.Error(codes.Unavailable, "down"))
	require.True(t, ok)
	require.True(t, errors.As(classifyGeminiError(unavailable), &re))
	assert.Equal(t, 503, re.StatusCode)

	invalid, ok := apierror.FromError(status.Error(codes.InvalidArgument, "bad"))
	require.True(t, ok)
	assert.False(t, errors.As(classifyGeminiError(invalid), &re))

	plain := errors.New("boom")
	assert.ErrorIs(t, classifyGeminiError(plain), plain)
}

func TestMeasuredRecordsCalls(t *testing.T) {
	stats := NewCallStats(time.Hour)
	gen := &stubGenerator{reply: "ok"}
	m := NewMeasured(gen, stats, "stub-model")

	_, err := m.Generate(context.Background(), "p")
	require.NoError(t, err)

	gen.err = errors.New("down")
	_, err = m.Generate(context.Background(), "p")
	require.Error(t, err)

	snap := m.Stats().Snapshot()
	assert.Equal(t, 2, snap.Calls)
	assert.Equal(t, 1, snap.Failures)
	assert.Zero(t, snap.Retryable)
	assert.Equal(t, "stub-model", m.Model())
}

func TestRetryAfterHeader(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, retryAfter(h))

	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfter(h))

	h.Set("Retry-After", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	assert.InDelta(t, time.Hour.Seconds(), retryAfter(h).Seconds(), 5)

	h.Set("Retry-After", "soon")
	assert.Zero(t, retryAfter(h))
}
