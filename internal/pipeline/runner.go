package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docdigest/internal/chunker"
	"github.com/dgallion1/docdigest/internal/doctree"
	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/structured"
)

// Layout places a run's intermediate files under one root directory.
type Layout struct {
	Root string
}

func (l Layout) Archive() string   { return filepath.Join(l.Root, "extract.zip") }
func (l Layout) UnzipDir() string  { return filepath.Join(l.Root, "unzipped") }
func (l Layout) ChunksDir() string { return filepath.Join(l.Root, "chunks") }

// Artifact is where the artifact for mode ends up.
func (l Layout) Artifact(mode extract.Mode) string {
	return filepath.Join(l.ChunksDir(), ArtifactName(mode))
}

// Stage names a phase of a run.
type Stage string

const (
	StageStructure Stage = "structure"
	StageUnpack    Stage = "unpack"
	StageChunk     Stage = "chunk"
	StageGenerate  Stage = "generate"
	StageAggregate Stage = "aggregate"
	StageWrite     Stage = "write"
)

// StageError reports which phase of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	return &StageError{Stage: s, Err: err}
}

// RunnerConfig holds the knobs shared by every run.
type RunnerConfig struct {
	Chunking    chunker.Config
	Extract     ExtractorConfig
	Collision   CollisionPolicy
	TokenBudget int // warn about chunks estimated above this; 0 disables
}

// Hooks report progress. Any field may be nil.
type Hooks struct {
	OnChunks    func(total int)
	OnChunkDone func(index int)
}

// RunRequest describes one document to digest.
type RunRequest struct {
	Source string
	Mode   extract.Mode
	Layout Layout
	Doc    *DocumentRef // published when set and the runner has a publisher
}

// RunResult summarizes a finished run.
type RunResult struct {
	Mode         extract.Mode
	Chunks       int
	Aggregate    *Aggregate
	ArtifactPath string // empty when nothing was extracted
	Failed       []ChunkFailure
	PublishErr   error
}

// Runner wires structural extraction, chunking, generation, aggregation and
// output together.
type Runner struct {
	structure structured.Extractor
	gen       extract.Generator
	templates extract.Templates
	cfg       RunnerConfig
	publisher Publisher
	log       *slog.Logger
}

func NewRunner(structure structured.Extractor, gen extract.Generator, templates extract.Templates, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.Chunking.HeadingMarker == "" {
		cfg.Chunking = chunker.DefaultConfig()
	}
	return &Runner{
		structure: structure,
		gen:       gen,
		templates: templates,
		cfg:       cfg,
		log:       log,
	}
}

// WithPublisher sets where finished aggregates are published.
func (r *Runner) WithPublisher(p Publisher) *Runner {
	r.publisher = p
	return r
}

// Run digests req.Source end to end.
func (r *Runner) Run(ctx context.Context, req RunRequest, hooks Hooks) (*RunResult, error) {
	chunks, err := r.Chunk(ctx, req.Source, req.Layout)
	if err != nil {
		return nil, err
	}
	res, err := r.Digest(ctx, req.Mode, chunks, req.Layout, hooks)
	if err != nil {
		return nil, err
	}

	r.Publish(ctx, req.Doc, res)
	return res, nil
}

// Publish hands a non-empty aggregate to the configured publisher. Failures
// are logged and kept on res; the artifact on disk stays valid.
func (r *Runner) Publish(ctx context.Context, doc *DocumentRef, res *RunResult) {
	if doc == nil || r.publisher == nil || res.Aggregate.Len() == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, *doc, res.Aggregate); err != nil {
		r.log.Error("publish failed", "doc_id", doc.DocID, "error", err)
		res.PublishErr = err
	}
}

// Chunk runs structural extraction and writes the chunk files, returning
// the chunks as loaded back from disk.
func (r *Runner) Chunk(ctx context.Context, source string, layout Layout) ([]doctree.Chunk, error) {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return nil, stageErr(StageStructure, fmt.Errorf("create work dir: %w", err))
	}

	if err := r.structure.Extract(ctx, source, layout.Archive()); err != nil {
		return nil, stageErr(StageStructure, err)
	}

	if err := os.RemoveAll(layout.UnzipDir()); err != nil {
		return nil, stageErr(StageUnpack, err)
	}
	if err := structured.Unpack(layout.Archive(), layout.UnzipDir()); err != nil {
		return nil, stageErr(StageUnpack, err)
	}
	elements, err := structured.LoadElements(layout.UnzipDir())
	if err != nil {
		return nil, stageErr(StageUnpack, err)
	}

	if _, err := chunker.WriteFiles(ctx, layout.ChunksDir(), elements, r.cfg.Chunking); err != nil {
		return nil, stageErr(StageChunk, err)
	}
	chunks, err := chunker.LoadDir(layout.ChunksDir())
	if err != nil {
		return nil, stageErr(StageChunk, err)
	}
	r.log.Info("chunked document", "elements", len(elements), "chunks", len(chunks))

	if r.cfg.TokenBudget > 0 {
		for _, i := range chunker.OversizedChunks(chunks, r.cfg.TokenBudget) {
			r.log.Warn("chunk exceeds token budget", "chunk", i,
				"estimated_tokens", chunker.EstimateTokens(chunks[i].Text), "budget", r.cfg.TokenBudget)
		}
	}
	return chunks, nil
}

// Digest extracts every chunk, aggregates the outcomes and writes the
// artifact into the layout's chunks directory.
func (r *Runner) Digest(ctx context.Context, mode extract.Mode, chunks []doctree.Chunk, layout Layout, hooks Hooks) (*RunResult, error) {
	log := r.log.With("mode", string(mode))
	if hooks.OnChunks != nil {
		hooks.OnChunks(len(chunks))
	}

	x := NewExtractor(r.gen, r.templates.For(mode), r.cfg.Extract, log)
	x.OnChunkDone = hooks.OnChunkDone
	extracted, err := x.Run(ctx, chunks)
	if err != nil {
		return nil, stageErr(StageGenerate, err)
	}

	agg := NewAggregator(mode, r.cfg.Collision)
	for _, out := range extracted.Outcomes {
		if err := agg.Add(out); err != nil {
			return nil, stageErr(StageAggregate, err)
		}
	}
	result := agg.Finalize()

	if err := os.MkdirAll(layout.ChunksDir(), 0o755); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	path, err := WriteArtifact(layout.ChunksDir(), result)
	if err != nil {
		return nil, stageErr(StageWrite, err)
	}
	if path == "" {
		log.Warn("nothing extracted, no artifact written", "chunks", len(chunks), "skipped", result.Skipped)
	} else {
		log.Info("artifact written", "path", path, "entries", result.Len(), "skipped", result.Skipped,
			"failed", len(extracted.Failed))
	}

	return &RunResult{
		Mode:         mode,
		Chunks:       len(chunks),
		Aggregate:    result,
		ArtifactPath: path,
		Failed:       extracted.Failed,
	}, nil
}
