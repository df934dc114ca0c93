package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdigest/internal/app"
	"github.com/dgallion1/docdigest/internal/chunker"
	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pipeline"
)

func newDigestCmd(opts *rootOptions, use, mode string) *cobra.Command {
	var reuse bool

	short := "Summarize each section of a document"
	artifact := pipeline.SummaryArtifact
	if mode == string(extract.ModeGlossary) {
		short = "Build a glossary from a document"
		artifact = pipeline.GlossaryArtifact
	}

	cmd := &cobra.Command{
		Use:   use + " <file>",
		Short: short,
		Long: short + `.

The document is split into sections, each section is sent to the model, and
the results are written to ` + artifact + ` in the document's work
directory. With --reuse-chunks the chunk files left by an earlier run (or by
"docdigest chunk") are used and structural extraction is skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, opts, extract.Mode(mode), args[0], reuse)
		},
	}
	cmd.Flags().BoolVar(&reuse, "reuse-chunks", false, "digest existing chunk files instead of re-extracting")
	return cmd
}

func runDigest(cmd *cobra.Command, opts *rootOptions, mode extract.Mode, source string, reuse bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	if !reuse {
		if err := checkSource(source); err != nil {
			return err
		}
	}

	log := opts.logger(cmd.ErrOrStderr())
	comps, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	layout := pipeline.Layout{Root: workRoot(cfg, source)}
	progress := NewProgressReporter(cmd.OutOrStdout(), opts.quiet)

	var res *pipeline.RunResult
	if reuse {
		chunks, lerr := chunker.LoadDir(layout.ChunksDir())
		if lerr != nil {
			return fmt.Errorf("load chunks: %w", lerr)
		}
		if len(chunks) == 0 {
			return fmt.Errorf("no chunk files in %s", layout.ChunksDir())
		}
		res, err = comps.Runner.Digest(ctx, mode, chunks, layout, progress.Hooks())
	} else {
		res, err = comps.Runner.Run(ctx, pipeline.RunRequest{Source: source, Mode: mode, Layout: layout}, progress.Hooks())
	}
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			log.Error("run failed", "stage", se.Stage, "error", se.Err)
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	progress.Finish(res)
	return nil
}
