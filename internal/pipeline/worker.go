package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Worker processes a single digest job.
type Worker struct {
	runner   *Runner
	workRoot string
	log      *slog.Logger
}

func NewWorker(runner *Runner, workRoot string, log *slog.Logger) *Worker {
	return &Worker{runner: runner, workRoot: workRoot, log: log}
}

// Process runs the full digest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID, "mode", string(job.Mode))

	// Phase 1: stage the upload in the job's work directory.
	layout := Layout{Root: filepath.Join(w.workRoot, job.ID)}
	job.setWorkDir(layout.Root)
	source, err := w.stageSource(layout, job)
	if err != nil {
		w.fail(log, job, fmt.Errorf("stage upload: %w", err))
		return
	}
	job.SetFileData(nil)

	// Phase 2: structural extraction and chunking.
	job.SetStatus(StatusStructuring, "structuring")
	chunks, err := w.runner.Chunk(ctx, source, layout)
	if err != nil {
		w.fail(log, job, err)
		return
	}

	// Phase 3: generation, aggregation and output.
	job.SetStatus(StatusGenerating, "generating")
	res, err := w.runner.Digest(ctx, job.Mode, chunks, layout, Hooks{
		OnChunks:    job.SetTotalChunks,
		OnChunkDone: func(int) { job.IncrChunksProcessed() },
	})
	if err != nil {
		w.fail(log, job, err)
		return
	}

	w.runner.Publish(ctx, &DocumentRef{
		UserID:      job.UserID,
		DocID:       job.ID,
		Filename:    job.Filename,
		ContentHash: job.ContentHash,
	}, res)

	job.SetResult(res)
	for _, f := range res.Failed {
		job.AddError(fmt.Sprintf("chunk %d: %s", f.Index, f.Err))
	}
	if res.PublishErr != nil {
		job.AddError(fmt.Sprintf("publish: %s", res.PublishErr))
	}

	switch {
	case len(res.Failed) > 0:
		job.SetStatus(StatusPartial, "done")
	case res.Aggregate.Len() == 0:
		job.SetStatus(StatusEmpty, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "chunks", res.Chunks, "entries", res.Aggregate.Len(),
		"skipped", res.Aggregate.Skipped, "failed", len(res.Failed))
}

func (w *Worker) stageSource(layout Layout, job *Job) (string, error) {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(layout.Root, "source"+strings.ToLower(filepath.Ext(job.Filename)))
	if err := os.WriteFile(path, job.FileData(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Worker) fail(log *slog.Logger, job *Job, err error) {
	phase := "failed"
	var se *StageError
	if errors.As(err, &se) {
		phase = string(se.Stage)
	}
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}
