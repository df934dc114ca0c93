package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdigest/internal/app"
	"github.com/dgallion1/docdigest/internal/chunker"
	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pipeline"
)

func newChunkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a document into section chunk files without calling the model",
		Long: `Runs structural extraction and writes one file_<n>.txt per section into the
document's work directory, then lists the chunks with a rough token estimate.
No model is contacted, so this is a cheap way to check section boundaries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, opts, args[0])
		},
	}
}

func runChunk(cmd *cobra.Command, opts *rootOptions, source string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := checkSource(source); err != nil {
		return err
	}

	log := opts.logger(cmd.ErrOrStderr())
	structure, err := app.StructureExtractor(cfg, log)
	if err != nil {
		return err
	}
	rcfg, err := app.RunnerConfig(cfg)
	if err != nil {
		return err
	}
	// Chunking never reaches the generator.
	runner := pipeline.NewRunner(structure, nil, extract.DefaultTemplates(), rcfg, log)

	layout := pipeline.Layout{Root: workRoot(cfg, source)}
	chunks, err := runner.Chunk(ctx, source, layout)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d chunks written to %s\n", len(chunks), layout.ChunksDir())
	if opts.quiet {
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tTOKENS\tFIRST LINE")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", c.Index, chunker.EstimateTokens(c.Text), firstLine(c.Text, 60))
	}
	return tw.Flush()
}

func firstLine(text string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if r := []rune(line); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return line
}
