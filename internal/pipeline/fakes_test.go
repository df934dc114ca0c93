package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docdigest/internal/doctree"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGenerator answers each prompt by looking up the chunk text it
// contains. Replies for later chunks can be made to return first.
type scriptedGenerator struct {
	replies map[string]string        // chunk marker -> reply
	delays  map[string]time.Duration // chunk marker -> delay before replying
	errs    map[string][]error       // chunk marker -> errors returned before the reply

	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies: map[string]string{},
		delays:  map[string]time.Duration{},
		errs:    map[string][]error{},
		calls:   map[string]int{},
	}
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	key := ""
	for k := range g.replies {
		if strings.Contains(prompt, k) {
			key = k
			break
		}
	}

	g.mu.Lock()
	call := g.calls[key]
	g.calls[key]++
	g.mu.Unlock()

	if d := g.delays[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if errs := g.errs[key]; call < len(errs) {
		return "", errs[call]
	}
	return g.replies[key], nil
}

func (g *scriptedGenerator) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func chunksOf(texts ...string) []doctree.Chunk {
	out := make([]doctree.Chunk, len(texts))
	for i, t := range texts {
		out[i] = doctree.Chunk{Index: i, Text: t}
	}
	return out
}
