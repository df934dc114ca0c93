package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// Row text longer than this is never treated as a heading.
const maxHeadingLen = 120

// headingRatio is how much larger than body text a row must be to count as
// a heading.
const headingRatio = 1.15

// PDFParser handles PDF files. It reads text rows with their font sizes and
// promotes rows set noticeably larger than the body text to headings. When
// the Go library fails it can fall back to pdftotext, which yields body text
// only.
type PDFParser struct {
	FallbackPdftotext bool
}

// textRow is one visual line of a page.
type textRow struct {
	text string
	size float64
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docdigest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	rows, err := extractPDFRows(tmpPath)
	if err == nil {
		return classifyRows(rows), nil
	}
	if !p.FallbackPdftotext {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	text, ferr := extractPdftotext(tmpPath)
	if ferr != nil {
		return nil, fmt.Errorf("extract pdf text: %w (fallback: %v)", err, ferr)
	}
	var elements []doctree.Element
	for _, page := range strings.Split(text, "\f") {
		for _, line := range strings.Split(page, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				elements = append(elements, doctree.Paragraph(line))
			}
		}
	}
	return elements, nil
}

func extractPDFRows(path string) ([]textRow, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []textRow
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageRows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range pageRows {
			var sb strings.Builder
			size := 0.0
			for _, t := range row.Content {
				sb.WriteString(t.S)
				size = math.Max(size, t.FontSize)
			}
			if text := strings.TrimSpace(sb.String()); text != "" {
				rows = append(rows, textRow{text: text, size: size})
			}
		}
	}
	return rows, nil
}

// classifyRows turns rows into elements. The body size is the font size
// covering the most characters; larger short rows are headings, ranked by
// size: with a single heading size every heading is level 2, otherwise the
// largest is level 1, the next level 2 and so on.
func classifyRows(rows []textRow) []doctree.Element {
	body := bodyFontSize(rows)

	var sizes []float64
	seen := make(map[float64]bool)
	isHeading := func(r textRow) bool {
		return body > 0 && r.size >= body*headingRatio && len(r.text) <= maxHeadingLen
	}
	for _, r := range rows {
		if isHeading(r) {
			s := roundSize(r.size)
			if !seen[s] {
				seen[s] = true
				sizes = append(sizes, s)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))

	levels := make(map[float64]int, len(sizes))
	for i, s := range sizes {
		level := i + 1
		if len(sizes) == 1 {
			level = 2
		}
		levels[s] = min(level, 6)
	}

	var c collector
	for _, r := range rows {
		if isHeading(r) {
			c.addHeading(levels[roundSize(r.size)], r.text)
			continue
		}
		// Keep line structure inside a paragraph run.
		if c.text.Len() > 0 {
			c.text.WriteString("\n")
		}
		c.text.WriteString(r.text)
	}
	return c.result()
}

func bodyFontSize(rows []textRow) float64 {
	weight := make(map[float64]int)
	for _, r := range rows {
		weight[roundSize(r.size)] += len(r.text)
	}
	best, bestWeight := 0.0, -1
	for s, w := range weight {
		if w > bestWeight || (w == bestWeight && s < best) {
			best, bestWeight = s, w
		}
	}
	return best
}

func roundSize(s float64) float64 {
	return math.Round(s*2) / 2
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
