package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// Parser converts raw document bytes into structural elements, the same shape
// the remote extraction service produces.
type Parser interface {
	Parse(r io.Reader, filename string) ([]doctree.Element, error)
}

// Options tunes parser construction.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// collector accumulates body text and flushes it as paragraph elements
// whenever a heading arrives.
type collector struct {
	elements []doctree.Element
	text     strings.Builder
}

func (c *collector) addText(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if c.text.Len() > 0 {
		c.text.WriteString("\n\n")
	}
	c.text.WriteString(t)
}

func (c *collector) flush() {
	if t := strings.TrimSpace(c.text.String()); t != "" {
		c.elements = append(c.elements, doctree.Paragraph(t))
	}
	c.text.Reset()
}

func (c *collector) addHeading(level int, title string) {
	c.flush()
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	c.elements = append(c.elements, doctree.Heading(level, title))
}

func (c *collector) result() []doctree.Element {
	c.flush()
	return c.elements
}
