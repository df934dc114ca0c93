package chunker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// FileName returns the chunk file name for index.
func FileName(index int) string {
	return fmt.Sprintf("file_%d.txt", index)
}

// WriteFiles runs the splitter against dir, one file per chunk, and returns
// the written paths in chunk order. Files are staged in a sibling directory
// and swapped into place only when every chunk was written, so a failed run
// leaves the previous contents of dir untouched.
func WriteFiles(ctx context.Context, dir string, elements []doctree.Element, cfg Config) ([]string, error) {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk parent dir: %w", err)
	}
	staging, err := os.MkdirTemp(parent, filepath.Base(dir)+".staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	fs := &fileSink{dir: staging}
	defer fs.abort()

	sp := newSplitter(cfg, fs)
	if err := sp.start(); err != nil {
		return nil, err
	}
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sp.feed(el); err != nil {
			return nil, err
		}
	}
	if err := sp.finish(); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear chunk dir: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return nil, fmt.Errorf("publish chunk dir: %w", err)
	}
	committed = true

	paths := make([]string, len(fs.written))
	for i, name := range fs.written {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// fileSink holds at most one open chunk file at a time.
type fileSink struct {
	dir     string
	f       *os.File
	w       *bufio.Writer
	name    string
	written []string
}

func (s *fileSink) open(index int) error {
	s.name = FileName(index)
	f, err := os.OpenFile(filepath.Join(s.dir, s.name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open chunk %d: %w", index, err)
	}
	s.f = f
	s.w = bufio.NewWriter(f)
	return nil
}

func (s *fileSink) line(text string) error {
	if _, err := s.w.WriteString(text); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	return nil
}

func (s *fileSink) close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	if err := s.w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", s.name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.name, err)
	}
	s.written = append(s.written, s.name)
	return nil
}

// abort releases a file left open by an early return.
func (s *fileSink) abort() {
	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
}
