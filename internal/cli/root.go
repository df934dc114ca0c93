// Package cli implements the docdigest command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdigest/internal/config"
)

// rootOptions are the persistent flags. A flag only overrides the loaded
// config when it was set on the command line.
type rootOptions struct {
	envFile     string
	workDir     string
	provider    string
	extractor   string
	concurrency int
	rate        float64
	burst       int
	retries     int
	policy      string
	collision   string
	prompts     string
	marker      string
	screen      bool
	quiet       bool
	verbose     bool
}

// NewRootCmd builds the docdigest command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docdigest",
		Short: "Digest documents into section summaries or a glossary",
		Long: `docdigest splits a document into sections at its second-level headings,
asks a language model about each section, and writes either a summary per
section or a glossary of the terms the document defines.

Settings come from the environment (and a .env file); flags override them.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", "", "env file to load (default .env when present)")
	f.StringVar(&opts.workDir, "work-dir", "", "root for per-document work directories (WORK_DIR)")
	f.StringVar(&opts.provider, "provider", "", "text generator: anthropic, gemini or openai (LLM_PROVIDER)")
	f.StringVar(&opts.extractor, "extractor", "", "structure extractor: adobe or local (STRUCTURE_EXTRACTOR)")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "max chunks in flight, 0 for unbounded (MAX_CONCURRENT_EXTRACT)")
	f.Float64Var(&opts.rate, "rate", 0, "model calls per second, 0 disables (EXTRACT_RATE_PER_SEC)")
	f.IntVar(&opts.burst, "burst", 0, "rate limiter burst (EXTRACT_BURST)")
	f.IntVar(&opts.retries, "retries", 0, "retries for transient model errors (MAX_RETRIES)")
	f.StringVar(&opts.policy, "failure-policy", "", "abort or partial (FAILURE_POLICY)")
	f.StringVar(&opts.collision, "collision", "", "glossary term collisions: last, first or merge (GLOSSARY_COLLISION)")
	f.StringVar(&opts.prompts, "prompts", "", "YAML file with prompt overrides (PROMPTS_FILE)")
	f.StringVar(&opts.marker, "heading-marker", "", "element path fragment that starts a section (HEADING_MARKER)")
	f.BoolVar(&opts.screen, "screen-replies", false, "reject replies with oversized fields or instruction-like text (SCREEN_REPLIES)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "disable progress output")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newDigestCmd(opts, "summarize", "summary"),
		newDigestCmd(opts, "glossary", "glossary"),
		newChunkCmd(opts),
	)
	return cmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("work-dir") {
		cfg.WorkDir = o.workDir
	}
	if f.Changed("provider") {
		cfg.LLMProvider = strings.ToLower(o.provider)
	}
	if f.Changed("extractor") {
		cfg.StructureExtractor = strings.ToLower(o.extractor)
	}
	if f.Changed("concurrency") {
		cfg.MaxConcurrentExtract = o.concurrency
	}
	if f.Changed("rate") {
		cfg.ExtractRatePerSec = o.rate
	}
	if f.Changed("burst") {
		cfg.ExtractBurst = o.burst
	}
	if f.Changed("retries") {
		cfg.MaxRetries = o.retries
	}
	if f.Changed("failure-policy") {
		cfg.FailurePolicy = strings.ToLower(o.policy)
	}
	if f.Changed("collision") {
		cfg.GlossaryCollision = strings.ToLower(o.collision)
	}
	if f.Changed("prompts") {
		cfg.PromptsFile = o.prompts
	}
	if f.Changed("heading-marker") {
		cfg.HeadingMarker = o.marker
	}
	if f.Changed("screen-replies") {
		cfg.ScreenReplies = o.screen
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case o.verbose:
		level = slog.LevelDebug
	case o.quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// workRoot is the per-document work directory: <work-dir>/<file stem>.
func workRoot(cfg config.Config, source string) string {
	base := filepath.Base(source)
	return filepath.Join(cfg.WorkDir, strings.TrimSuffix(base, filepath.Ext(base)))
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", path)
	}
	return nil
}
