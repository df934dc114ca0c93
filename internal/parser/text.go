package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// TextParser handles plain text files. Blank lines separate paragraphs; plain
// text carries no headings.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var elements []doctree.Element
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				elements = append(elements, doctree.Paragraph(current.String()))
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		elements = append(elements, doctree.Paragraph(current.String()))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return elements, nil
}
