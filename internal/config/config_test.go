package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DOCDIGEST_API_KEY", "WORK_DIR", "LLM_PROVIDER", "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "STRUCTURE_EXTRACTOR", "PDF_SERVICES_CLIENT_ID",
		"PDF_SERVICES_CLIENT_SECRET", "MAX_CONCURRENT_EXTRACT", "EXTRACT_RATE_PER_SEC",
		"EXTRACT_BURST", "MAX_RETRIES", "FAILURE_POLICY", "GLOSSARY_COLLISION", "JOB_TTL",
		"PATHSTORE_URL", "PATHSTORE_API_KEY", "HEADING_MARKER", "SCREEN_REPLIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.MaxConcurrentExtract != 5 {
		t.Errorf("expected MaxConcurrentExtract=5, got %d", cfg.MaxConcurrentExtract)
	}
	if cfg.ExtractRatePerSec != 0 {
		t.Errorf("expected limiter disabled by default, got %v", cfg.ExtractRatePerSec)
	}
	if cfg.FailurePolicy != "abort" || cfg.GlossaryCollision != "last" {
		t.Errorf("unexpected policies %q/%q", cfg.FailurePolicy, cfg.GlossaryCollision)
	}
	if cfg.HeadingMarker != "//Document/H2" {
		t.Errorf("unexpected heading marker %q", cfg.HeadingMarker)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected JobTTL=1h, got %v", cfg.JobTTL)
	}
	if cfg.ScreenReplies {
		t.Error("expected reply screening off by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("MAX_CONCURRENT_EXTRACT", "0")
	t.Setenv("EXTRACT_RATE_PER_SEC", "2.5")
	t.Setenv("FAILURE_POLICY", "Partial")
	t.Setenv("JOB_TTL", "90s")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("SCREEN_REPLIES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrentExtract != 0 {
		t.Errorf("expected unbounded (0), got %d", cfg.MaxConcurrentExtract)
	}
	if cfg.ExtractRatePerSec != 2.5 {
		t.Errorf("expected rate 2.5, got %v", cfg.ExtractRatePerSec)
	}
	if cfg.FailurePolicy != "partial" {
		t.Errorf("expected partial, got %q", cfg.FailurePolicy)
	}
	if cfg.JobTTL != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.JobTTL)
	}
	if !cfg.ScreenReplies {
		t.Error("expected SCREEN_REPLIES=true to enable screening")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback retries 3, got %d", cfg.MaxRetries)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("GEMINI_MODEL")
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=from-file\nGEMINI_MODEL=gemini-test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("ANTHROPIC_API_KEY")
		os.Unsetenv("GEMINI_MODEL")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnthropicAPIKey != "from-file" {
		t.Errorf("expected key from .env, got %q", cfg.AnthropicAPIKey)
	}
	if cfg.GeminiModel != "gemini-test" {
		t.Errorf("expected model from .env, got %q", cfg.GeminiModel)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing env file")
	}
}

func validConfig() Config {
	return Config{
		APIKey:             "k",
		LLMProvider:        "anthropic",
		AnthropicAPIKey:    "a",
		StructureExtractor: "local",
		FailurePolicy:      "abort",
		GlossaryCollision:  "last",
		HeadingMarker:      "//Document/H2",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing anthropic key", func(c *Config) { c.AnthropicAPIKey = "" }, true},
		{"gemini without key", func(c *Config) { c.LLMProvider = "gemini" }, true},
		{"gemini with key", func(c *Config) { c.LLMProvider = "gemini"; c.GeminiAPIKey = "g" }, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, true},
		{"adobe without credentials", func(c *Config) { c.StructureExtractor = "adobe" }, true},
		{"bad failure policy", func(c *Config) { c.FailurePolicy = "retry" }, true},
		{"bad collision policy", func(c *Config) { c.GlossaryCollision = "newest" }, true},
		{"pathstore without key", func(c *Config) { c.PathstoreURL = "http://ps" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	cfg.APIKey = ""
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected error without DOCDIGEST_API_KEY")
	}
}
