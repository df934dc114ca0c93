package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Summary is the topic and key points extracted from one chunk.
type Summary struct {
	Topic  string   `json:"topic"`
	Points []string `json:"points"`
}

// GlossaryEntry is one term extracted from a chunk.
type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Details    string `json:"details"`
}

// Outcome is the result of one chunk. Exactly one of Skipped, Summary and
// Entry is set.
type Outcome struct {
	Index   int
	Skipped bool
	Reason  string
	Summary *Summary
	Entry   *GlossaryEntry
}

// ReasonSkipToken is the skip reason used when the model itself declined.
const ReasonSkipToken = "model replied SKIP"

// Skip returns a skipped outcome for chunk i.
func Skip(i int, reason string) Outcome {
	return Outcome{Index: i, Skipped: true, Reason: reason}
}

// ParseReply interprets a model reply. Replies that do not follow the
// template's format come back as a skip with a reason; ParseReply never fails.
func ParseReply(index int, reply string, tmpl Template) Outcome {
	trimmed := strings.TrimSpace(reply)
	if hasFoldPrefix(trimmed, SkipToken) {
		return Skip(index, ReasonSkipToken)
	}

	switch tmpl.Mode {
	case ModeGlossary:
		entry, err := parseGlossary(trimmed, tmpl.Labels)
		if err != nil {
			return Skip(index, err.Error())
		}
		return Outcome{Index: index, Entry: entry}
	default:
		sum, err := parseSummary(trimmed, tmpl.Labels)
		if err != nil {
			return Skip(index, err.Error())
		}
		return Outcome{Index: index, Summary: sum}
	}
}

func parseGlossary(reply string, labels Labels) (*GlossaryEntry, error) {
	lines := nonBlankLines(reply)
	want := []string{labels.Term, labels.Definition, labels.Details}
	values := make([]string, len(want))
	for i, label := range want {
		if i >= len(lines) {
			return nil, fmt.Errorf("malformed reply: missing %s line", label)
		}
		v, ok := labelValue(lines[i], label)
		if !ok {
			return nil, fmt.Errorf("malformed reply: line %d has no %s label", i+1, label)
		}
		values[i] = v
	}
	if values[0] == "" || values[1] == "" {
		return nil, fmt.Errorf("malformed reply: empty term or definition")
	}
	return &GlossaryEntry{Term: values[0], Definition: values[1], Details: values[2]}, nil
}

func parseSummary(reply string, labels Labels) (*Summary, error) {
	lines := nonBlankLines(reply)
	if len(lines) == 0 {
		return nil, fmt.Errorf("malformed reply: empty")
	}
	topic, ok := labelValue(lines[0], labels.Topic)
	if !ok {
		return nil, fmt.Errorf("malformed reply: first line has no %s label", labels.Topic)
	}
	if topic == "" {
		return nil, fmt.Errorf("malformed reply: empty topic")
	}

	sum := &Summary{Topic: topic}
	for _, line := range lines[1:] {
		if point, ok := cutBullet(line, labels); ok {
			if point != "" {
				sum.Points = append(sum.Points, point)
			}
			continue
		}
		// Wrapped text continues the previous point.
		if n := len(sum.Points); n > 0 {
			sum.Points[n-1] += " " + line
		}
	}
	if len(sum.Points) == 0 {
		return nil, fmt.Errorf("malformed reply: no key points")
	}
	return sum, nil
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// labelValue finds label in line ignoring case and returns the trimmed text
// after it. Markdown emphasis opened before the label ("**Term:** x") is
// closed right after it and is not part of the value.
func labelValue(line, label string) (string, bool) {
	i := indexFold(line, label)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(label):]
	if open := strings.TrimSpace(line[:i]); open != "" && strings.Trim(open, "*_") == "" {
		rest = strings.TrimPrefix(rest, open)
	}
	return strings.TrimSpace(rest), true
}

var numberedPoint = regexp.MustCompile(`^\d+[.)]\s+`)

// cutBullet reports whether line starts a new point and returns its text.
// ASCII markers need whitespace after them so "*emphasis*" or "-1" stay
// continuation text.
func cutBullet(line string, labels Labels) (string, bool) {
	for _, b := range labels.Bullets {
		rest, ok := strings.CutPrefix(line, b)
		if !ok {
			continue
		}
		if len(b) == 1 && b[0] < utf8.RuneSelf && rest != "" && !unicode.IsSpace(rune(rest[0])) {
			continue
		}
		return strings.TrimSpace(rest), true
	}
	if labels.Numbered {
		if m := numberedPoint.FindString(line); m != "" {
			return strings.TrimSpace(line[len(m):]), true
		}
	}
	return "", false
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// indexFold is a case-insensitive strings.Index. It only reports matches
// that start on a rune boundary, so the returned offset is safe to slice.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}
