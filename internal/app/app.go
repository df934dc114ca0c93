// Package app builds the pipeline components named by a config.Config. Both
// the HTTP server and the CLI are wired through it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docdigest/internal/chunker"
	"github.com/dgallion1/docdigest/internal/config"
	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/parser"
	"github.com/dgallion1/docdigest/internal/pathstore"
	"github.com/dgallion1/docdigest/internal/pipeline"
	"github.com/dgallion1/docdigest/internal/structured"
)

// Components are the long-lived pieces built from config.
type Components struct {
	Runner    *pipeline.Runner
	Generator *extract.Measured
	closers   []func()
}

// Close releases client resources.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build wires a Runner from cfg.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Components, error) {
	c := &Components{}

	gen, model, err := c.generator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Generator = extract.NewMeasured(gen, extract.NewCallStats(time.Hour), model)

	structure, err := StructureExtractor(cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	templates, err := Templates(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	rcfg, err := RunnerConfig(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Runner = pipeline.NewRunner(structure, c.Generator, templates, rcfg, log)
	if cfg.PathstoreURL != "" {
		ps := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		c.closers = append(c.closers, ps.Close)
		c.Runner.WithPublisher(pipeline.NewPathstorePublisher(ps, ""))
	}
	return c, nil
}

// Templates loads the prompt templates for cfg.
func Templates(cfg config.Config) (extract.Templates, error) {
	templates, err := extract.LoadTemplates(cfg.PromptsFile)
	if err != nil {
		return extract.Templates{}, err
	}
	templates.Summary.Screen = cfg.ScreenReplies
	templates.Glossary.Screen = cfg.ScreenReplies
	return templates, nil
}

func (c *Components) generator(ctx context.Context, cfg config.Config) (extract.Generator, string, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		cl := extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, extract.WithClaudeBaseURL(cfg.AnthropicURL))
		c.closers = append(c.closers, cl.Close)
		return cl, cl.Model(), nil
	case "gemini":
		cl, err := extract.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", err
		}
		c.closers = append(c.closers, func() { cl.Close() })
		return cl, cl.Model(), nil
	case "openai":
		cl := extract.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		c.closers = append(c.closers, cl.Close)
		return cl, cl.Model(), nil
	}
	return nil, "", fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

// StructureExtractor returns the configured structural extractor.
func StructureExtractor(cfg config.Config, log *slog.Logger) (structured.Extractor, error) {
	switch cfg.StructureExtractor {
	case "adobe":
		return structured.NewAdobeClient(structured.AdobeConfig{
			ClientID:     cfg.PDFClientID,
			ClientSecret: cfg.PDFClientSecret,
			BaseURL:      cfg.PDFServicesURL,
		}, log)
	case "local":
		return &structured.LocalExtractor{
			Options: parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
			Log:     log,
		}, nil
	}
	return nil, fmt.Errorf("unknown structure extractor %q", cfg.StructureExtractor)
}

// RunnerConfig translates cfg into pipeline settings.
func RunnerConfig(cfg config.Config) (pipeline.RunnerConfig, error) {
	policy, err := pipeline.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return pipeline.RunnerConfig{}, err
	}
	collision, err := pipeline.ParseCollisionPolicy(cfg.GlossaryCollision)
	if err != nil {
		return pipeline.RunnerConfig{}, err
	}
	return pipeline.RunnerConfig{
		Chunking: chunker.Config{HeadingMarker: cfg.HeadingMarker},
		Extract: pipeline.ExtractorConfig{
			MaxConcurrent: cfg.MaxConcurrentExtract,
			RatePerSec:    cfg.ExtractRatePerSec,
			Burst:         cfg.ExtractBurst,
			MaxRetries:    cfg.MaxRetries,
			Policy:        policy,
		},
		Collision:   collision,
		TokenBudget: cfg.TokenBudget,
	}, nil
}
