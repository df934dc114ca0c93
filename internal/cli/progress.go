package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pipeline"
)

// ProgressReporter draws a bar for chunk extraction.
type ProgressReporter struct {
	quiet bool
	out   io.Writer
	bar   *progressbar.ProgressBar
}

func NewProgressReporter(out io.Writer, quiet bool) *ProgressReporter {
	return &ProgressReporter{quiet: quiet, out: out}
}

// Hooks returns pipeline hooks that drive the bar. Chunk completions arrive
// from several goroutines; the bar serializes them.
func (p *ProgressReporter) Hooks() pipeline.Hooks {
	if p.quiet {
		return pipeline.Hooks{}
	}
	return pipeline.Hooks{
		OnChunks:    p.onChunks,
		OnChunkDone: p.onChunkDone,
	}
}

func (p *ProgressReporter) onChunks(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("Extracting chunks"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("chunks/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

func (p *ProgressReporter) onChunkDone(int) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Finish closes the bar and prints the run summary. Quiet mode prints only
// the artifact path.
func (p *ProgressReporter) Finish(res *pipeline.RunResult) {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
	if p.quiet {
		if res.ArtifactPath != "" {
			fmt.Fprintln(p.out, res.ArtifactPath)
		}
		return
	}
	if res.ArtifactPath == "" {
		fmt.Fprintf(p.out, "No entries extracted from %d chunks (%d skipped)\n", res.Chunks, res.Aggregate.Skipped)
		return
	}
	fmt.Fprintf(p.out, "✓ %d %s written to %s\n", res.Aggregate.Len(), noun(res.Mode), res.ArtifactPath)
	fmt.Fprintf(p.out, "  Chunks:  %d\n", res.Chunks)
	fmt.Fprintf(p.out, "  Skipped: %d\n", res.Aggregate.Skipped-len(res.Failed))
	if len(res.Failed) > 0 {
		fmt.Fprintf(p.out, "  Failed:  %d\n", len(res.Failed))
		for _, f := range res.Failed {
			fmt.Fprintf(p.out, "    chunk %d: %v\n", f.Index, f.Err)
		}
	}
}

func noun(mode extract.Mode) string {
	if mode == extract.ModeGlossary {
		return "glossary entries"
	}
	return "summaries"
}
