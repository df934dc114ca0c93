package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/docdigest/internal/extract"
)

// ErrFinalized is returned by Add once the aggregate has been finalized.
var ErrFinalized = errors.New("aggregate is finalized")

// CollisionPolicy decides which glossary entry wins when two chunks define
// the same term.
type CollisionPolicy string

const (
	CollisionLast  CollisionPolicy = "last"
	CollisionFirst CollisionPolicy = "first"
	CollisionMerge CollisionPolicy = "merge"
)

// ParseCollisionPolicy validates a policy name. Empty means CollisionLast.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case "", CollisionLast:
		return CollisionLast, nil
	case CollisionFirst, CollisionMerge:
		return CollisionPolicy(s), nil
	}
	return "", fmt.Errorf("unknown glossary collision policy %q", s)
}

// IndexedSummary is a summary tagged with the chunk it came from.
type IndexedSummary struct {
	Index int `json:"index"`
	extract.Summary
}

// Aggregate is the finalized result of a run.
type Aggregate struct {
	Mode      extract.Mode            `json:"mode"`
	Summaries []IndexedSummary        `json:"summaries,omitempty"`
	Glossary  []extract.GlossaryEntry `json:"glossary,omitempty"`
	Skipped   int                     `json:"skipped"`
}

// Len is the number of records the artifact will hold.
func (a *Aggregate) Len() int {
	if a.Mode == extract.ModeGlossary {
		return len(a.Glossary)
	}
	return len(a.Summaries)
}

// Aggregator collects outcomes from concurrent tasks. Outcomes are folded in
// chunk order at Finalize, so the result does not depend on the order in
// which tasks completed.
type Aggregator struct {
	mu        sync.Mutex
	mode      extract.Mode
	policy    CollisionPolicy
	pending   []extract.Outcome
	skipped   int
	finalized *Aggregate
}

func NewAggregator(mode extract.Mode, policy CollisionPolicy) *Aggregator {
	if policy == "" {
		policy = CollisionLast
	}
	return &Aggregator{mode: mode, policy: policy}
}

// Add records one outcome. Skips are counted and dropped.
func (a *Aggregator) Add(out extract.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized != nil {
		return ErrFinalized
	}
	switch {
	case out.Skipped:
		a.skipped++
	case a.mode == extract.ModeGlossary && out.Entry != nil:
		a.pending = append(a.pending, out)
	case a.mode == extract.ModeSummary && out.Summary != nil:
		a.pending = append(a.pending, out)
	default:
		return fmt.Errorf("chunk %d: outcome does not match %s mode", out.Index, a.mode)
	}
	return nil
}

// Finalize folds the collected outcomes and freezes the aggregate. Calling
// it again returns the same aggregate.
func (a *Aggregator) Finalize() *Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized != nil {
		return a.finalized
	}

	slices.SortStableFunc(a.pending, func(x, y extract.Outcome) int { return x.Index - y.Index })
	agg := &Aggregate{Mode: a.mode, Skipped: a.skipped}
	if a.mode == extract.ModeGlossary {
		agg.Glossary = foldGlossary(a.pending, a.policy)
	} else {
		for _, out := range a.pending {
			agg.Summaries = append(agg.Summaries, IndexedSummary{Index: out.Index, Summary: *out.Summary})
		}
	}
	a.pending = nil
	a.finalized = agg
	return agg
}

// foldGlossary keys entries by term, keeping each term at the position of
// its first appearance.
func foldGlossary(outcomes []extract.Outcome, policy CollisionPolicy) []extract.GlossaryEntry {
	var entries []extract.GlossaryEntry
	pos := make(map[string]int)
	for _, out := range outcomes {
		e := *out.Entry
		i, seen := pos[e.Term]
		if !seen {
			pos[e.Term] = len(entries)
			entries = append(entries, e)
			continue
		}
		switch policy {
		case CollisionFirst:
		case CollisionMerge:
			entries[i].Definition = mergeText(entries[i].Definition, e.Definition)
			entries[i].Details = mergeText(entries[i].Details, e.Details)
		default:
			entries[i] = e
		}
	}
	return entries
}

func mergeText(a, b string) string {
	switch {
	case b == "" || strings.EqualFold(b, "N/A") || a == b:
		return a
	case a == "" || strings.EqualFold(a, "N/A"):
		return b
	}
	return a + "; " + b
}
