package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docdigest/internal/extract"
)

func noBackoff(int) time.Duration { return time.Millisecond }

func TestExtractorOutcomesFollowChunkIndex(t *testing.T) {
	gen := newScriptedGenerator()
	var texts []string
	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("chunk-%d", i)
		texts = append(texts, key+"\n")
		gen.replies[key] = fmt.Sprintf("Main Topic: T%d\n• p%d", i, i)
		// Earlier chunks answer last.
		gen.delays[key] = time.Duration(6-i) * 5 * time.Millisecond
	}
	gen.replies["chunk-2"] = "SKIP"
	gen.replies["chunk-4"] = "no labels here"

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{}, discardLogger())
	res, err := x.Run(context.Background(), chunksOf(texts...))
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 6)

	for i, out := range res.Outcomes {
		assert.Equal(t, i, out.Index)
	}
	assert.True(t, res.Outcomes[2].Skipped)
	assert.True(t, res.Outcomes[4].Skipped)
	assert.Equal(t, "T5", res.Outcomes[5].Summary.Topic)

	agg := NewAggregator(extract.ModeSummary, CollisionLast)
	for _, out := range res.Outcomes {
		require.NoError(t, agg.Add(out))
	}
	final := agg.Finalize()
	require.Equal(t, 4, final.Len())
	var idx []int
	for _, s := range final.Summaries {
		idx = append(idx, s.Index)
	}
	assert.Equal(t, []int{0, 1, 3, 5}, idx)
	assert.Equal(t, 2, final.Skipped)
}

func TestExtractorRespectsConcurrencyLimit(t *testing.T) {
	gen := newScriptedGenerator()
	var texts []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("c%02d", i)
		texts = append(texts, key)
		gen.replies[key] = "SKIP"
		gen.delays[key] = 10 * time.Millisecond
	}

	var done atomic.Int32
	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeGlossary), ExtractorConfig{MaxConcurrent: 3}, discardLogger())
	x.OnChunkDone = func(int) { done.Add(1) }

	_, err := x.Run(context.Background(), chunksOf(texts...))
	require.NoError(t, err)
	assert.LessOrEqual(t, gen.peak.Load(), int32(3))
	assert.Equal(t, int32(10), done.Load())
}

func TestExtractorUnboundedFansOut(t *testing.T) {
	gen := newScriptedGenerator()
	var texts []string
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("u%d", i)
		texts = append(texts, key)
		gen.replies[key] = "SKIP"
		gen.delays[key] = 30 * time.Millisecond
	}

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{MaxConcurrent: 0}, discardLogger())
	_, err := x.Run(context.Background(), chunksOf(texts...))
	require.NoError(t, err)
	assert.Greater(t, gen.peak.Load(), int32(3))
}

func TestExtractorRetriesTransientErrors(t *testing.T) {
	gen := newScriptedGenerator()
	gen.replies["flaky"] = "TERM: X\nDEFINITION: d\nDETAILS: N/A"
	gen.errs["flaky"] = []error{
		&extract.RetryableError{StatusCode: 429},
		&extract.RetryableError{StatusCode: 503},
	}

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeGlossary), ExtractorConfig{MaxRetries: 3}, discardLogger())
	x.backoff = noBackoff
	res, err := x.Run(context.Background(), chunksOf("flaky"))
	require.NoError(t, err)
	require.NotNil(t, res.Outcomes[0].Entry)
	assert.Equal(t, 3, gen.callCount("flaky"))
}

func TestExtractorGivesUpAfterMaxRetries(t *testing.T) {
	gen := newScriptedGenerator()
	gen.replies["down"] = "SKIP"
	gen.errs["down"] = []error{
		&extract.RetryableError{StatusCode: 500},
		&extract.RetryableError{StatusCode: 500},
		&extract.RetryableError{StatusCode: 500},
	}

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{MaxRetries: 1}, discardLogger())
	x.backoff = noBackoff
	_, err := x.Run(context.Background(), chunksOf("down"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, gen.callCount("down"))
}

func TestExtractorAbortCancelsBatch(t *testing.T) {
	gen := newScriptedGenerator()
	gen.replies["bad"] = ""
	gen.errs["bad"] = []error{errors.New("unauthorized")}
	gen.replies["slow"] = "SKIP"
	gen.delays["slow"] = 5 * time.Second

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{Policy: FailAbort}, discardLogger())
	start := time.Now()
	res, err := x.Run(context.Background(), chunksOf("slow", "bad"))

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExtractorPartialKeepsSuccessfulChunks(t *testing.T) {
	gen := newScriptedGenerator()
	gen.replies["good"] = "Main Topic: G\n• g"
	gen.replies["bad"] = ""
	gen.errs["bad"] = []error{errors.New("bad request")}

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{Policy: FailPartial}, discardLogger())
	res, err := x.Run(context.Background(), chunksOf("good", "bad", "good again"))
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.True(t, res.Outcomes[1].Skipped)
	assert.NotNil(t, res.Outcomes[0].Summary)
	assert.NotNil(t, res.Outcomes[2].Summary)
}

func TestExtractorRateLimit(t *testing.T) {
	gen := newScriptedGenerator()
	gen.replies["r"] = "SKIP"

	x := NewExtractor(gen, extract.DefaultTemplate(extract.ModeSummary), ExtractorConfig{RatePerSec: 20, Burst: 1}, discardLogger())
	start := time.Now()
	_, err := x.Run(context.Background(), chunksOf("r", "r", "r", "r", "r"))
	require.NoError(t, err)
	// Five calls at 20/s with burst 1 need at least four intervals of 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailAbort, p)
	_, err = ParseFailurePolicy("ignore")
	assert.Error(t, err)

	c, err := ParseCollisionPolicy("merge")
	require.NoError(t, err)
	assert.Equal(t, CollisionMerge, c)
	c, err = ParseCollisionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CollisionLast, c)
	_, err = ParseCollisionPolicy("newest")
	assert.Error(t, err)
}
