package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docdigest/internal/pipeline"
)

const paper = "# Paper\n\n## Intro\n\nIntro text.\n\n## Methods\n\nMethods text.\n"

// fakeOpenAI answers chat completions based on which section the prompt holds.
func fakeOpenAI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[0].Content

		var reply string
		switch {
		case strings.Contains(prompt, "Glossary Entry:") && strings.Contains(prompt, "Intro text."):
			reply = "SKIP"
		case strings.Contains(prompt, "Glossary Entry:"):
			reply = "TERM: System prompt\nDEFINITION: Instructions sent before the user turn\nDETAILS: N/A"
		case strings.Contains(prompt, "Intro text."):
			reply = "Main Topic: Intro\n• sets the scene"
		default:
			reply = "Main Topic: Methods\n• describes the approach"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func setup(t *testing.T) (src, workDir string, calls *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	srv, calls := fakeOpenAI(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	src = filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(src, []byte(paper), 0o644))
	return src, filepath.Join(dir, "work"), calls
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummarizeCommand(t *testing.T) {
	src, work, calls := setup(t)

	out, err := execute(t, "summarize", src, "--work-dir", work,
		"--provider", "openai", "--extractor", "local", "--quiet")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(work, "paper", "chunks", pipeline.SummaryArtifact), path)
	assert.EqualValues(t, 2, calls.Load())

	got, err := pipeline.ReadSummaries(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Intro", got[0].Topic)
	assert.Equal(t, []string{"describes the approach"}, got[1].Points)
}

func TestGlossaryCommandReportsSkips(t *testing.T) {
	src, work, _ := setup(t)

	out, err := execute(t, "glossary", src, "--work-dir", work,
		"--provider", "openai", "--extractor", "local", "-c", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 glossary entries written to")
	assert.Contains(t, out, "Skipped: 1")

	entries, err := pipeline.ReadGlossary(filepath.Join(work, "paper", "chunks", pipeline.GlossaryArtifact))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "System prompt", entries[0].Term)
}

func TestGlossaryScreenRepliesFlag(t *testing.T) {
	src, work, _ := setup(t)

	out, err := execute(t, "glossary", src, "--work-dir", work,
		"--provider", "openai", "--extractor", "local", "--screen-replies")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries extracted from 2 chunks (2 skipped)")
}

func TestChunkThenReuse(t *testing.T) {
	src, work, calls := setup(t)

	out, err := execute(t, "chunk", src, "--work-dir", work, "--extractor", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "2 chunks written to")
	assert.Contains(t, out, "Paper")
	assert.Zero(t, calls.Load())

	// Reuse works even after the source is gone.
	require.NoError(t, os.Remove(src))
	out, err = execute(t, "summarize", src, "--reuse-chunks", "--work-dir", work,
		"--provider", "openai", "--extractor", "local", "-q")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), pipeline.SummaryArtifact))
	assert.EqualValues(t, 2, calls.Load())
}

func TestReuseWithoutChunksFails(t *testing.T) {
	src, work, _ := setup(t)
	_, err := execute(t, "summarize", src, "--reuse-chunks", "--work-dir", work,
		"--provider", "openai", "--extractor", "local")
	assert.ErrorContains(t, err, "no chunk files")
}

func TestInvalidFlagsFailValidation(t *testing.T) {
	src, work, _ := setup(t)
	_, err := execute(t, "summarize", src, "--work-dir", work,
		"--provider", "openai", "--extractor", "local", "--failure-policy", "ignore")
	assert.ErrorContains(t, err, "FAILURE_POLICY")

	_, err = execute(t, "summarize", filepath.Join(work, "missing.pdf"),
		"--provider", "openai", "--extractor", "local")
	assert.ErrorContains(t, err, "source")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Intro", firstLine("\nIntro\nbody\n", 60))
	assert.Equal(t, "abcd…", firstLine("abcdefgh", 5))
}
