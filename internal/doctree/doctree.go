package doctree

import (
	"fmt"
	"strings"
)

// Structural paths used by the extraction service. Adobe-style paths carry an
// optional index suffix, e.g. "//Document/H2[3]".
const (
	DocumentRoot  = "//Document"
	ParagraphPath = "//Document/P"
	TitlePath     = "//Document/Title"

	// DefaultHeadingMarker marks second-level section headings.
	DefaultHeadingMarker = "//Document/H2"
)

// Element is one extracted text fragment tagged with its structural path.
type Element struct {
	Path string  `json:"Path"`
	Text *string `json:"Text,omitempty"` // nil when the service reported no text
}

// Content returns the element text and whether it was present.
func (e Element) Content() (string, bool) {
	if e.Text == nil {
		return "", false
	}
	return *e.Text, true
}

// IsHeading reports whether the element path contains marker.
func (e Element) IsHeading(marker string) bool {
	return marker != "" && strings.Contains(e.Path, marker)
}

// Chunk is the text of one section, ready for extraction.
type Chunk struct {
	Index int    // Zero-based position within the document
	Text  string // Element texts, one per line
}

// Text builds a text element.
func Text(path, text string) Element {
	return Element{Path: path, Text: &text}
}

// Heading builds a heading element of the given level.
func Heading(level int, text string) Element {
	return Text(HeadingPath(level), text)
}

// Paragraph builds a body text element.
func Paragraph(text string) Element {
	return Text(ParagraphPath, text)
}

// HeadingPath returns the structural path for a heading level (1-6).
func HeadingPath(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return fmt.Sprintf("%s/H%d", DocumentRoot, level)
}
