package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = -1
			},
			wantErr: "concurrency",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.PageDelay = -time.Millisecond
			},
			wantErr: "page delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.PageDelay != time.Second {
		t.Fatalf("default page delay = %s, want 1s", cfg.PageDelay)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("default page size = %d, want 50", cfg.PageSize)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tyres.yaml")
	content := "output_dir: results\noutput_format: dual\npage_delay: 2s\nmax_retries: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputDir != "results" || cfg.OutputFormat != "dual" {
		t.Fatalf("unexpected output settings: %+v", cfg)
	}
	if cfg.PageDelay != 2*time.Second {
		t.Fatalf("page delay = %s, want 2s", cfg.PageDelay)
	}
	if cfg.MaxRetries != 0 {
		t.Fatalf("max retries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("unset fields should keep defaults, page size = %d", cfg.PageSize)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("page_delay: [oops"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TYRES_OUTPUT_FORMAT", "JSON")
	t.Setenv("TYRES_PAGE_DELAY", "1500ms")
	t.Setenv("TYRES_MAX_PAGES", "7")
	t.Setenv("TYRES_OUTPUT_DIR", "  ")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.OutputFormat != "json" {
		t.Fatalf("output format = %q", cfg.OutputFormat)
	}
	if cfg.PageDelay != 1500*time.Millisecond {
		t.Fatalf("page delay = %s", cfg.PageDelay)
	}
	if cfg.MaxPages != 7 {
		t.Fatalf("max pages = %d", cfg.MaxPages)
	}
	if cfg.OutputDir != "." {
		t.Fatalf("blank env should be ignored, output dir = %q", cfg.OutputDir)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("TYRES_CONCURRENCY", "many")

	if err := DefaultConfig().ApplyEnv(); err == nil || !strings.Contains(err.Error(), "TYRES_CONCURRENCY") {
		t.Fatalf("expected TYRES_CONCURRENCY error, got %v", err)
	}
}
