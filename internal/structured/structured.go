// Package structured obtains the structural elements of a document. An
// Extractor turns a source file into an archive holding structuredData.json;
// Unpack and LoadElements read that archive back into doctree elements.
package structured

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// DataFile is the name of the element listing inside an extraction archive.
const DataFile = "structuredData.json"

// ErrNoElements is returned when structuredData.json has no elements list.
var ErrNoElements = errors.New("structured data has no elements")

// Extractor produces an extraction archive for a source document.
type Extractor interface {
	Extract(ctx context.Context, srcPath, archivePath string) error
}

// Document is the top-level shape of structuredData.json.
type Document struct {
	Elements []doctree.Element `json:"elements"`
}

// maxEntryBytes caps how much a single archive member may expand to.
const maxEntryBytes = 512 << 20

// Unpack extracts every regular file in the zip archive into dir. Entries
// that would land outside dir are rejected.
func Unpack(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create unzip dir: %w", err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes %s", f.Name, dir)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if err := unpackFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func unpackFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntryBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxEntryBytes {
		return fmt.Errorf("entry larger than %d bytes", maxEntryBytes)
	}
	return nil
}

// LoadElements decodes dir/structuredData.json.
func LoadElements(dir string) ([]doctree.Element, error) {
	data, err := os.ReadFile(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, fmt.Errorf("read structured data: %w", err)
	}

	var raw struct {
		Elements *[]doctree.Element `json:"elements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode structured data: %w", err)
	}
	if raw.Elements == nil {
		return nil, ErrNoElements
	}
	return *raw.Elements, nil
}

// WriteArchive writes elements as a single-entry extraction archive.
func WriteArchive(path string, elements []doctree.Element) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".extract-*.zip")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	w, err := zw.Create(DataFile)
	if err != nil {
		tmp.Close()
		return err
	}
	if elements == nil {
		elements = []doctree.Element{}
	}
	if err := json.NewEncoder(w).Encode(Document{Elements: elements}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode structured data: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
