package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pipeline"
)

// finishedJob resolves the job in the URL and writes an error response unless
// it has completed with output.
func (s *Server) finishedJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	snap := job.Snapshot()
	switch {
	case !snap.Status.Done():
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return nil, false
	case snap.Status == pipeline.StatusFailed:
		jsonError(w, "job failed", http.StatusConflict)
		return nil, false
	case snap.Status == pipeline.StatusEmpty:
		jsonError(w, "run produced no entries", http.StatusNotFound)
		return nil, false
	}
	return job, true
}

func (s *Server) handleRunArtifact(w http.ResponseWriter, r *http.Request) {
	job, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	path, _ := job.Artifact()
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Error("read artifact", "job_id", job.ID, "path", path, "error", err)
		jsonError(w, "artifact unavailable", http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pipeline.ArtifactName(job.Mode)))
	_, _ = w.Write(data)
}

func (s *Server) handleRunEntries(w http.ResponseWriter, r *http.Request) {
	job, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	path, _ := job.Artifact()
	agg := pipeline.Aggregate{Mode: job.Mode}
	var err error
	if job.Mode == extract.ModeGlossary {
		agg.Glossary, err = pipeline.ReadGlossary(path)
	} else {
		agg.Summaries, err = pipeline.ReadSummaries(path)
	}
	if err != nil {
		s.log.Error("parse artifact", "job_id", job.ID, "path", path, "error", err)
		jsonError(w, "artifact unavailable", http.StatusGone)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
