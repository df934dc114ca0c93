package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Templates holds the template for each mode.
type Templates struct {
	Summary  Template
	Glossary Template
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() Templates {
	return Templates{
		Summary:  DefaultTemplate(ModeSummary),
		Glossary: DefaultTemplate(ModeGlossary),
	}
}

// For returns the template for mode.
func (t Templates) For(mode Mode) Template {
	if mode == ModeGlossary {
		return t.Glossary
	}
	return t.Summary
}

type templateFile struct {
	Summary  *templateOverride `yaml:"summary"`
	Glossary *templateOverride `yaml:"glossary"`
}

type templateOverride struct {
	Template       string `yaml:"template"`
	Labels         Labels `yaml:"labels"`
	NumberedPoints *bool  `yaml:"numbered_points"`
}

// LoadTemplates reads prompt overrides from a YAML file. Fields left out of
// the file keep their built-in values. An empty path returns the defaults.
//
//	summary:
//	  template: |
//	    Summarize: {context}
//	  labels:
//	    topic: "Topic:"
//	glossary:
//	  labels:
//	    term: "Term:"
func LoadTemplates(path string) (Templates, error) {
	tmpl := DefaultTemplates()
	if path == "" {
		return tmpl, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompts file: %w", err)
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Templates{}, fmt.Errorf("parse prompts file: %w", err)
	}
	if f.Summary != nil {
		tmpl.Summary = f.Summary.apply(tmpl.Summary)
	}
	if f.Glossary != nil {
		tmpl.Glossary = f.Glossary.apply(tmpl.Glossary)
	}

	for _, t := range []Template{tmpl.Summary, tmpl.Glossary} {
		if err := t.Validate(); err != nil {
			return Templates{}, fmt.Errorf("prompts file %s: %w", path, err)
		}
	}
	return tmpl, nil
}

func (o *templateOverride) apply(t Template) Template {
	if o.Template != "" {
		t.Text = o.Template
	}
	if o.Labels.Topic != "" {
		t.Labels.Topic = o.Labels.Topic
	}
	if len(o.Labels.Bullets) > 0 {
		t.Labels.Bullets = o.Labels.Bullets
	}
	if o.NumberedPoints != nil {
		t.Labels.Numbered = *o.NumberedPoints
	}
	if o.Labels.Term != "" {
		t.Labels.Term = o.Labels.Term
	}
	if o.Labels.Definition != "" {
		t.Labels.Definition = o.Labels.Definition
	}
	if o.Labels.Details != "" {
		t.Labels.Details = o.Labels.Details
	}
	return t
}
