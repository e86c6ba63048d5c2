package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultProfile != "default" {
		t.Errorf("Expected default profile 'default', got '%s'", cfg.DefaultProfile)
	}

	if cfg.DefaultOutputFormat != types.OutputFormatJSON {
		t.Errorf("Expected default output format 'json', got '%s'", cfg.DefaultOutputFormat)
	}

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected max retries 3, got %d", cfg.MaxRetries)
	}

	if cfg.ChunkSize%utils.UploadChunkAlignment != 0 {
		t.Errorf("Default chunk size %d is not aligned to %d", cfg.ChunkSize, utils.UploadChunkAlignment)
	}

	if cfg.MaxDeltaPages != utils.DefaultMaxDeltaPages {
		t.Errorf("Expected max delta pages %d, got %d", utils.DefaultMaxDeltaPages, cfg.MaxDeltaPages)
	}

	if cfg.LogLevel != "normal" {
		t.Errorf("Expected log level 'normal', got '%s'", cfg.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "invalid output format",
			mutate:    func(c *Config) { c.DefaultOutputFormat = types.OutputFormat("invalid") },
			wantError: true,
			errorMsg:  "invalid output format",
		},
		{
			name:      "max retries too high",
			mutate:    func(c *Config) { c.MaxRetries = 11 },
			wantError: true,
			errorMsg:  "max retries must be between 0 and 10",
		},
		{
			name:      "retry base delay too low",
			mutate:    func(c *Config) { c.RetryBaseDelay = 50 },
			wantError: true,
			errorMsg:  "retry base delay must be between 100ms and 60000ms",
		},
		{
			name:      "request timeout out of range",
			mutate:    func(c *Config) { c.RequestTimeout = 3700 },
			wantError: true,
			errorMsg:  "request timeout must be between 1 and 3600 seconds",
		},
		{
			name:      "chunk size not aligned",
			mutate:    func(c *Config) { c.ChunkSize = utils.UploadChunkAlignment + 1 },
			wantError: true,
			errorMsg:  "chunk size must be a positive multiple",
		},
		{
			name:      "chunk size zero",
			mutate:    func(c *Config) { c.ChunkSize = 0 },
			wantError: true,
			errorMsg:  "chunk size must be a positive multiple",
		},
		{
			name:      "max delta pages zero",
			mutate:    func(c *Config) { c.MaxDeltaPages = 0 },
			wantError: true,
			errorMsg:  "max delta pages must be at least 1",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.LogLevel = "invalid" },
			wantError: true,
			errorMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error containing '%s', got nil", tt.errorMsg)
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
			}
		})
	}
}

func TestConfigDurationGetters(t *testing.T) {
	cfg := &Config{
		RetryBaseDelay: 1000,
		RequestTimeout: 60,
	}

	if d := cfg.GetRetryBaseDelay(); d != 1000*time.Millisecond {
		t.Errorf("Expected retry base delay 1000ms, got %v", d)
	}

	if d := cfg.GetRequestTimeout(); d != 60*time.Second {
		t.Errorf("Expected request timeout 60s, got %v", d)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(EnvPrefix+"CONFIG_DIR", tempDir)

	cfg := DefaultConfig()
	cfg.DefaultProfile = "test-profile"
	cfg.DefaultOutputFormat = types.OutputFormatTable
	cfg.MaxRetries = 5
	cfg.ChunkSize = 2 * utils.UploadChunkAlignment
	cfg.MaxDeltaPages = 50
	cfg.LogLevel = "verbose"
	cfg.ColorOutput = false

	if err := cfg.Save(); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedCfg := DefaultConfig()
	if err := loadedCfg.loadFromFile(); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.DefaultProfile != cfg.DefaultProfile {
		t.Errorf("Expected profile '%s', got '%s'", cfg.DefaultProfile, loadedCfg.DefaultProfile)
	}

	if loadedCfg.DefaultOutputFormat != cfg.DefaultOutputFormat {
		t.Errorf("Expected output format '%s', got '%s'", cfg.DefaultOutputFormat, loadedCfg.DefaultOutputFormat)
	}

	if loadedCfg.ChunkSize != cfg.ChunkSize {
		t.Errorf("Expected chunk size %d, got %d", cfg.ChunkSize, loadedCfg.ChunkSize)
	}

	if loadedCfg.MaxDeltaPages != cfg.MaxDeltaPages {
		t.Errorf("Expected max delta pages %d, got %d", cfg.MaxDeltaPages, loadedCfg.MaxDeltaPages)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ODRV_DEFAULT_PROFILE", "env-profile")
	t.Setenv("ODRV_OUTPUT_FORMAT", "table")
	t.Setenv("ODRV_MAX_RETRIES", "7")
	t.Setenv("ODRV_CHUNK_SIZE", "655360")
	t.Setenv("ODRV_MAX_DELTA_PAGES", "42")
	t.Setenv("ODRV_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.loadFromEnv()

	if cfg.DefaultProfile != "env-profile" {
		t.Errorf("Expected profile 'env-profile', got '%s'", cfg.DefaultProfile)
	}

	if cfg.DefaultOutputFormat != types.OutputFormatTable {
		t.Errorf("Expected output format 'table', got '%s'", cfg.DefaultOutputFormat)
	}

	if cfg.MaxRetries != 7 {
		t.Errorf("Expected max retries 7, got %d", cfg.MaxRetries)
	}

	if cfg.ChunkSize != 655360 {
		t.Errorf("Expected chunk size 655360, got %d", cfg.ChunkSize)
	}

	if cfg.MaxDeltaPages != 42 {
		t.Errorf("Expected max delta pages 42, got %d", cfg.MaxDeltaPages)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(EnvPrefix+"CONFIG_DIR", tempDir)

	if err := os.WriteFile(tempDir+"/"+ConfigFileName, []byte(`{"maxRetries": 99}`), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected Load to reject out-of-range maxRetries")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"True", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseBool(tt.input)
			if got != tt.want {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
