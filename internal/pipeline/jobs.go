package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docdigest/internal/extract"
)

// JobStatus represents the state of a digest job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusStructuring JobStatus = "structuring"
	StatusGenerating  JobStatus = "generating"
	StatusCompleted   JobStatus = "completed"
	StatusPartial     JobStatus = "partial"
	StatusEmpty       JobStatus = "no_entries"
	StatusFailed      JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusEmpty, StatusFailed:
		return true
	}
	return false
}

// Job tracks the state of a single document digest.
type Job struct {
	mu sync.Mutex

	ID     string       `json:"job_id"`
	UserID string       `json:"user_id"`
	Mode   extract.Mode `json:"mode"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData     []byte
	workDir      string
	artifactPath string
	aggregate    *Aggregate
	errors       []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Entries         int      `json:"entries"`
	Skipped         int      `json:"skipped"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(id, userID, filename string, mode extract.Mode, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		UserID:      userID,
		Mode:        mode,
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs that have not been touched within the TTL
// and returns them so their work directories can be released.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var evicted []*Job
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			evicted = append(evicted, job)
		}
	}
	return evicted
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetResult records the outcome of a finished run.
func (j *Job) SetResult(res *RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.aggregate = res.Aggregate
	j.artifactPath = res.ArtifactPath
	j.Progress.Entries = res.Aggregate.Len()
	j.Progress.Skipped = res.Aggregate.Skipped - len(res.Failed)
	j.Progress.Failed = len(res.Failed)
	j.UpdatedAt = time.Now()
}

// Artifact returns the artifact path and aggregate once the job has a result.
func (j *Job) Artifact() (string, *Aggregate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifactPath, j.aggregate
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// WorkDir returns the job's work directory, empty until a worker picks it up.
func (j *Job) WorkDir() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.workDir
}

func (j *Job) setWorkDir(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.workDir = dir
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string       `json:"job_id"`
	UserID      string       `json:"user_id"`
	Mode        extract.Mode `json:"mode"`
	Status      JobStatus    `json:"status"`
	Phase       string       `json:"phase"`
	Filename    string       `json:"filename"`
	ContentHash string       `json:"content_hash,omitempty"`
	Progress    Progress     `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		UserID:      j.UserID,
		Mode:        j.Mode,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    p,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
