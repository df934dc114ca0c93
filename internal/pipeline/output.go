package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docdigest/internal/extract"
)

const (
	SummaryArtifact  = "technical_summaries.txt"
	GlossaryArtifact = "technical_glossary.txt"

	topicLabel   = "Main Topic: "
	pointBullet  = "• "
	detailsLabel = "Additional Details: "
)

var (
	summarySeparator  = strings.Repeat("=", 50)
	glossarySeparator = strings.Repeat("-", 40)
)

// ArtifactName returns the artifact file name for mode.
func ArtifactName(mode extract.Mode) string {
	if mode == extract.ModeGlossary {
		return GlossaryArtifact
	}
	return SummaryArtifact
}

// WriteArtifact writes the aggregate into dir and returns the file path. An
// empty aggregate writes nothing and returns "". The file is replaced
// atomically.
func WriteArtifact(dir string, agg *Aggregate) (string, error) {
	if agg.Len() == 0 {
		return "", nil
	}
	path := filepath.Join(dir, ArtifactName(agg.Mode))

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if agg.Mode == extract.ModeGlossary {
		formatGlossary(bw, agg.Glossary)
	} else {
		formatSummaries(bw, agg.Summaries)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return path, nil
}

func formatSummaries(w io.Writer, summaries []IndexedSummary) {
	for _, s := range summaries {
		fmt.Fprintf(w, "Document %d:\n\n", s.Index+1)
		fmt.Fprintf(w, "%s%s\n\n", topicLabel, s.Topic)
		for _, p := range s.Points {
			fmt.Fprintf(w, "%s%s\n", pointBullet, p)
		}
		fmt.Fprintf(w, "\n%s\n\n", summarySeparator)
	}
}

func formatGlossary(w io.Writer, entries []extract.GlossaryEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s:\n%s\n\n", e.Term, e.Definition)
		fmt.Fprintf(w, "%s%s\n", detailsLabel, e.Details)
		fmt.Fprintf(w, "%s\n", glossarySeparator)
	}
}

// ReadSummaries parses a summaries artifact.
func ReadSummaries(path string) ([]IndexedSummary, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var (
		out []IndexedSummary
		cur *IndexedSummary
	)
	for n, line := range lines {
		switch {
		case strings.HasPrefix(line, "Document ") && strings.HasSuffix(line, ":") && cur == nil:
			num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "Document "), ":"))
			if err != nil || num < 1 {
				return nil, fmt.Errorf("%s:%d: bad document header %q", path, n+1, line)
			}
			cur = &IndexedSummary{Index: num - 1}
		case cur == nil:
			if line != "" {
				return nil, fmt.Errorf("%s:%d: text outside a document block", path, n+1)
			}
		case line == summarySeparator:
			out = append(out, *cur)
			cur = nil
		case strings.HasPrefix(line, topicLabel):
			cur.Topic = strings.TrimPrefix(line, topicLabel)
		case strings.HasPrefix(line, pointBullet):
			cur.Points = append(cur.Points, strings.TrimPrefix(line, pointBullet))
		}
	}
	if cur != nil {
		return nil, fmt.Errorf("%s: unterminated document %d", path, cur.Index+1)
	}
	return out, nil
}

// ReadGlossary parses a glossary artifact.
func ReadGlossary(path string) ([]extract.GlossaryEntry, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var (
		out   []extract.GlossaryEntry
		block []string
	)
	for _, line := range lines {
		if line != glossarySeparator {
			block = append(block, line)
			continue
		}
		e, err := parseGlossaryBlock(block)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, len(out)+1, err)
		}
		out = append(out, e)
		block = nil
	}
	for _, l := range block {
		if l != "" {
			return nil, fmt.Errorf("%s: unterminated entry", path)
		}
	}
	return out, nil
}

func parseGlossaryBlock(block []string) (extract.GlossaryEntry, error) {
	if len(block) < 3 || !strings.HasSuffix(block[0], ":") {
		return extract.GlossaryEntry{}, fmt.Errorf("malformed entry")
	}
	last := block[len(block)-1]
	details, ok := strings.CutPrefix(last, detailsLabel)
	if !ok {
		return extract.GlossaryEntry{}, fmt.Errorf("missing %q line", strings.TrimSpace(detailsLabel))
	}
	body := block[1 : len(block)-1]
	if n := len(body); n > 0 && body[n-1] == "" {
		body = body[:n-1]
	}
	return extract.GlossaryEntry{
		Term:       strings.TrimSuffix(block[0], ":"),
		Definition: strings.Join(body, "\n"),
		Details:    details,
	}, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}
