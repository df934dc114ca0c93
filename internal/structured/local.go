package structured

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docdigest/internal/parser"
)

// LocalExtractor parses the source file in-process and writes an archive of
// the same shape the remote service returns.
type LocalExtractor struct {
	Options parser.Options
	Log     *slog.Logger
}

func (x *LocalExtractor) Extract(ctx context.Context, srcPath, archivePath string) error {
	p, err := parser.ForFile(srcPath, x.Options)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	elements, err := p.Parse(f, srcPath)
	if err != nil {
		return fmt.Errorf("parse %s: %w", srcPath, err)
	}
	if x.Log != nil {
		x.Log.Info("local extraction complete", "source", srcPath, "elements", len(elements))
	}
	return WriteArchive(archivePath, elements)
}
