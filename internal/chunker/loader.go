package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/dgallion1/docdigest/internal/doctree"
)

var chunkFileRe = regexp.MustCompile(`^file_(\d+)\.txt$`)

// Load reads a single chunk file back into memory.
func Load(path string) (doctree.Chunk, error) {
	m := chunkFileRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return doctree.Chunk{}, fmt.Errorf("not a chunk file: %s", path)
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return doctree.Chunk{}, fmt.Errorf("chunk index %q: %w", m[1], err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return doctree.Chunk{}, fmt.Errorf("read chunk: %w", err)
	}
	return doctree.Chunk{Index: index, Text: string(data)}, nil
}

// LoadDir loads every chunk file in dir ordered by chunk index. Files that
// are not chunk files (such as output artifacts) are ignored.
func LoadDir(dir string) ([]doctree.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chunk dir: %w", err)
	}

	var chunks []doctree.Chunk
	for _, e := range entries {
		if e.IsDir() || !chunkFileRe.MatchString(e.Name()) {
			continue
		}
		c, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}
