package extract

import (
	"fmt"
	"strings"
)

// Mode selects what a run extracts from each chunk.
type Mode string

const (
	ModeSummary  Mode = "summary"
	ModeGlossary Mode = "glossary"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSummary:
		return ModeSummary, nil
	case ModeGlossary:
		return ModeGlossary, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeSummary, ModeGlossary)
}

// ContextPlaceholder is replaced by the chunk text when a template is rendered.
const ContextPlaceholder = "{context}"

// SkipToken is the reply prefix that marks a chunk as not worth extracting.
const SkipToken = "SKIP"

const SummaryPrompt = `Analyze the following content and create a structured summary:

1. Identify the main topic or heading.
2. Provide 3-5 key points that explain the core ideas, techniques, or methodologies.
3. Use bullet points for the key points.
4. Include relevant formulas or mathematical notations if applicable.
5. If the content is not substantive or doesn't contain important information, respond with "SKIP".

Format your response as follows:
Main Topic: [Identified main topic or heading]

• [Key point 1]
• [Key point 2]
• [Key point 3]
[Add more bullet points if necessary]

Content:
{context}

Summary:`

const GlossaryPrompt = `You are creating a glossary entry for a technical term or concept. Given the following content, please:

1. Identify the main term or concept being discussed.
2. Provide a clear and concise definition.
3. Include any relevant additional information such as formulas, related concepts, or key characteristics.
4. If the content isn't suitable for a glossary entry, respond with just the word "SKIP".

Format your response as follows:
TERM: [The identified term]
DEFINITION: [Concise definition]
DETAILS: [Any additional relevant information. If none, write "N/A"]

Content:
{context}

Glossary Entry:`

// Labels are the field prefixes the reply parser looks for.
type Labels struct {
	Topic      string   `yaml:"topic"`
	Bullets    []string `yaml:"bullets"`
	Numbered   bool     `yaml:"-"` // also accept "1." and "1)" point markers
	Term       string   `yaml:"term"`
	Definition string   `yaml:"definition"`
	Details    string   `yaml:"details"`
}

// Template is the prompt and reply grammar for one mode. It is passed by
// value into every task. Screen turns on ValidateSummary/ValidateEntry for
// parsed replies; it is off by default so records keep exactly what the
// model wrote.
type Template struct {
	Mode   Mode
	Text   string
	Labels Labels
	Screen bool
}

// DefaultTemplate returns the built-in template for mode.
func DefaultTemplate(mode Mode) Template {
	labels := Labels{
		Topic:      "Main Topic:",
		Bullets:    []string{"•", "-", "*"},
		Numbered:   true,
		Term:       "TERM:",
		Definition: "DEFINITION:",
		Details:    "DETAILS:",
	}
	text := SummaryPrompt
	if mode == ModeGlossary {
		text = GlossaryPrompt
	}
	return Template{Mode: mode, Text: text, Labels: labels}
}

// Validate checks that the template can be rendered and parsed.
func (t Template) Validate() error {
	if _, err := ParseMode(string(t.Mode)); err != nil {
		return err
	}
	if !strings.Contains(t.Text, ContextPlaceholder) {
		return fmt.Errorf("%s template: missing %s placeholder", t.Mode, ContextPlaceholder)
	}
	switch t.Mode {
	case ModeSummary:
		if t.Labels.Topic == "" || (len(t.Labels.Bullets) == 0 && !t.Labels.Numbered) {
			return fmt.Errorf("summary template: topic label and bullets are required")
		}
	case ModeGlossary:
		if t.Labels.Term == "" || t.Labels.Definition == "" || t.Labels.Details == "" {
			return fmt.Errorf("glossary template: term, definition and details labels are required")
		}
	}
	return nil
}

// Render substitutes the chunk text into the template.
func (t Template) Render(content string) string {
	return strings.ReplaceAll(t.Text, ContextPlaceholder, content)
}
