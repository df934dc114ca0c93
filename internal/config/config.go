package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Work layout
	WorkDir string

	// Text generation
	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string

	// Structural extraction
	StructureExtractor string
	PDFClientID        string
	PDFClientSecret    string
	PDFServicesURL     string
	HeadingMarker      string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Per-run extraction fan-out
	MaxConcurrentExtract int
	ExtractRatePerSec    float64
	ExtractBurst         int
	MaxRetries           int
	FailurePolicy        string
	GlossaryCollision    string
	TokenBudget          int

	// Prompt overrides
	PromptsFile string
	// ScreenReplies rejects parsed replies with oversized fields or
	// instruction-like text. Off by default.
	ScreenReplies bool

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Optional pathstore publishing
	PathstoreURL    string
	PathstoreAPIKey string

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration from the environment. Variables in a .env file in
// the working directory (or the files named) are applied first without
// overriding the real environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCDIGEST_API_KEY"),

		WorkDir: envOr("WORK_DIR", "./work"),

		LLMProvider:     strings.ToLower(envOr("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20240620"),
		AnthropicURL:    envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		StructureExtractor: strings.ToLower(envOr("STRUCTURE_EXTRACTOR", "adobe")),
		PDFClientID:        os.Getenv("PDF_SERVICES_CLIENT_ID"),
		PDFClientSecret:    os.Getenv("PDF_SERVICES_CLIENT_SECRET"),
		PDFServicesURL:     envOr("PDF_SERVICES_BASE_URL", "https://pdf-services.adobe.io"),
		HeadingMarker:      envOr("HEADING_MARKER", "//Document/H2"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 5),
		ExtractRatePerSec:    envFloat("EXTRACT_RATE_PER_SEC", 0),
		ExtractBurst:         envInt("EXTRACT_BURST", 1),
		MaxRetries:           envInt("MAX_RETRIES", 3),
		FailurePolicy:        strings.ToLower(envOr("FAILURE_POLICY", "abort")),
		GlossaryCollision:    strings.ToLower(envOr("GLOSSARY_COLLISION", "last")),
		TokenBudget:          envInt("TOKEN_BUDGET", 12000),

		PromptsFile:   os.Getenv("PROMPTS_FILE"),
		ScreenReplies: envBool("SCREEN_REPLIES", false),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	// Zero is a valid setting: one goroutine per chunk.
	if cfg.MaxConcurrentExtract < 0 {
		cfg.MaxConcurrentExtract = 5
	}
	if cfg.ExtractRatePerSec < 0 {
		cfg.ExtractRatePerSec = 0
	}
	if cfg.ExtractBurst <= 0 {
		cfg.ExtractBurst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg, nil
}

// Validate checks what every run needs: a usable text generator and a
// structural extractor.
func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, fmt.Errorf("GEMINI_API_KEY is required"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be anthropic, gemini or openai (got %q)", c.LLMProvider))
	}

	switch c.StructureExtractor {
	case "adobe":
		if c.PDFClientID == "" || c.PDFClientSecret == "" {
			errs = append(errs, fmt.Errorf("PDF_SERVICES_CLIENT_ID and PDF_SERVICES_CLIENT_SECRET are required"))
		}
	case "local":
	default:
		errs = append(errs, fmt.Errorf("STRUCTURE_EXTRACTOR must be adobe or local (got %q)", c.StructureExtractor))
	}

	switch c.FailurePolicy {
	case "abort", "partial":
	default:
		errs = append(errs, fmt.Errorf("FAILURE_POLICY must be abort or partial (got %q)", c.FailurePolicy))
	}
	switch c.GlossaryCollision {
	case "last", "first", "merge":
	default:
		errs = append(errs, fmt.Errorf("GLOSSARY_COLLISION must be last, first or merge (got %q)", c.GlossaryCollision))
	}
	if c.HeadingMarker == "" {
		errs = append(errs, fmt.Errorf("HEADING_MARKER must not be empty"))
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		errs = append(errs, fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set"))
	}
	return errors.Join(errs...)
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	err := c.Validate()
	if c.APIKey == "" {
		err = errors.Join(err, fmt.Errorf("DOCDIGEST_API_KEY is required"))
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
