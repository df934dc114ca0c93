package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxTopicLen      = 300
	maxPointLen      = 2000
	maxPoints        = 20
	maxTermLen       = 200
	maxDefinitionLen = 4000
	maxDetailsLen    = 8000
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`forget\s+(everything|all)|new\s+instructions)`,
)

// ValidateSummary rejects summaries with oversized fields, too many points or
// text that looks like an instruction aimed at a downstream model. It never
// modifies s.
func ValidateSummary(s *Summary) error {
	if s == nil {
		return fmt.Errorf("nil summary")
	}
	if err := checkField("topic", s.Topic, maxTopicLen); err != nil {
		return err
	}
	if len(s.Points) > maxPoints {
		return fmt.Errorf("%d points, more than %d", len(s.Points), maxPoints)
	}
	for i, p := range s.Points {
		if err := checkField(fmt.Sprintf("point %d", i+1), p, maxPointLen); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEntry applies the same checks to a glossary entry.
func ValidateEntry(e *GlossaryEntry) error {
	if e == nil {
		return fmt.Errorf("nil entry")
	}
	if err := checkField("term", e.Term, maxTermLen); err != nil {
		return err
	}
	if err := checkField("definition", e.Definition, maxDefinitionLen); err != nil {
		return err
	}
	if len(e.Details) > maxDetailsLen {
		return fmt.Errorf("details longer than %d bytes", maxDetailsLen)
	}
	if injectionPattern.MatchString(e.Details) {
		return fmt.Errorf("details look like a prompt injection")
	}
	return nil
}

func checkField(name, v string, max int) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("empty %s", name)
	}
	if len(v) > max {
		return fmt.Errorf("%s longer than %d bytes", name, max)
	}
	if injectionPattern.MatchString(v) {
		return fmt.Errorf("%s looks like a prompt injection", name)
	}
	return nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL/path-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}
