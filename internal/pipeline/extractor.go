package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dgallion1/docdigest/internal/doctree"
	"github.com/dgallion1/docdigest/internal/extract"
)

// FailurePolicy decides what an unrecovered chunk failure does to the batch.
type FailurePolicy string

const (
	// FailAbort returns the first failure and discards the batch.
	FailAbort FailurePolicy = "abort"
	// FailPartial records failed chunks and keeps the rest.
	FailPartial FailurePolicy = "partial"
)

// ParseFailurePolicy validates a policy name. Empty means FailAbort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailAbort:
		return FailAbort, nil
	case FailPartial:
		return FailPartial, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// ExtractorConfig bounds the fan-out.
type ExtractorConfig struct {
	MaxConcurrent int     // 0 means one goroutine per chunk
	RatePerSec    float64 // 0 disables the limiter
	Burst         int
	MaxRetries    int
	Policy        FailurePolicy
}

// ChunkFailure is a chunk whose model call failed for good.
type ChunkFailure struct {
	Index int
	Err   error
}

// ExtractResult holds one outcome per chunk, addressed by chunk index.
type ExtractResult struct {
	Outcomes []extract.Outcome
	Failed   []ChunkFailure
}

// Extractor runs one extraction task per chunk concurrently.
type Extractor struct {
	gen     extract.Generator
	tmpl    extract.Template
	cfg     ExtractorConfig
	limiter *rate.Limiter
	log     *slog.Logger

	// OnChunkDone, when set, is called once per finished chunk from the
	// goroutine that ran it.
	OnChunkDone func(index int)

	backoff func(attempt int) time.Duration
}

func NewExtractor(gen extract.Generator, tmpl extract.Template, cfg ExtractorConfig, log *slog.Logger) *Extractor {
	if cfg.Policy == "" {
		cfg.Policy = FailAbort
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	x := &Extractor{
		gen:     gen,
		tmpl:    tmpl,
		cfg:     cfg,
		log:     log,
		backoff: Backoff,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		x.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return x
}

// Run extracts every chunk. Under FailAbort the first unrecovered error
// cancels the remaining tasks and is returned with no result.
func (x *Extractor) Run(ctx context.Context, chunks []doctree.Chunk) (*ExtractResult, error) {
	res := &ExtractResult{Outcomes: make([]extract.Outcome, len(chunks))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if x.cfg.MaxConcurrent > 0 {
		g.SetLimit(x.cfg.MaxConcurrent)
	}

	for i, chunk := range chunks {
		task := extract.Task{Index: i, Content: chunk.Text}
		g.Go(func() error {
			out, err := x.runTask(gctx, task)
			if err != nil {
				if x.cfg.Policy != FailPartial || ctx.Err() != nil {
					return err
				}
				x.log.Error("chunk failed", "chunk", task.Index, "error", err)
				mu.Lock()
				res.Failed = append(res.Failed, ChunkFailure{Index: task.Index, Err: err})
				mu.Unlock()
				out = extract.Skip(task.Index, "extraction failed: "+err.Error())
			}
			res.Outcomes[task.Index] = out
			if x.OnChunkDone != nil {
				x.OnChunkDone(task.Index)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.SortFunc(res.Failed, func(a, b ChunkFailure) int { return a.Index - b.Index })
	return res, nil
}

func (x *Extractor) runTask(ctx context.Context, task extract.Task) (extract.Outcome, error) {
	log := x.log.With("chunk", task.Index)
	for attempt := 0; ; attempt++ {
		if x.limiter != nil {
			if err := x.limiter.Wait(ctx); err != nil {
				return extract.Outcome{}, err
			}
		}
		out, err := task.Run(ctx, x.gen, x.tmpl, log)
		if err == nil {
			return out, nil
		}
		if !IsRetryable(err) || attempt >= x.cfg.MaxRetries {
			return extract.Outcome{}, err
		}
		wait := retryDelay(err, x.backoff(attempt))
		log.Warn("retryable extraction error", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return extract.Outcome{}, ctx.Err()
		}
	}
}
