// Package config provides CLI configuration management for the speech-bubbles tool.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SETTINGS_PATH", "OUTPUT_FORMAT", "LOG_LEVEL", "LOG_FORMAT", "SERVE_ADDR",
		"NOTES_ROOT", "REDIS_ADDR", "REDIS_PASSWORD", "CACHE_TTL", "TIMEOUT", "DEBUG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != LogFormatConsole {
		t.Errorf("LogFormat = %v, want console", cfg.LogFormat)
	}
	if cfg.ServeAddr != DefaultServeAddr {
		t.Errorf("ServeAddr = %v, want %v", cfg.ServeAddr, DefaultServeAddr)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, DefaultCacheTTL)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %v, want empty", cfg.RedisAddr)
	}
	if cfg.Debug {
		t.Error("Debug should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestDefaultConstants verifies default constant values.
func TestDefaultConstants(t *testing.T) {
	if DefaultConfigDir != ".speech-bubbles" {
		t.Errorf("DefaultConfigDir = %v, want .speech-bubbles", DefaultConfigDir)
	}
	if DefaultConfigFile != "config.yaml" {
		t.Errorf("DefaultConfigFile = %v, want config.yaml", DefaultConfigFile)
	}
	if EnvPrefix != "SPEECH_BUBBLES_" {
		t.Errorf("EnvPrefix = %v, want SPEECH_BUBBLES_", EnvPrefix)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatTerminal, true},
		{OutputFormatHTML, true},
		{OutputFormatPage, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"HTML", false}, // Case sensitive
		{"text", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

// TestCLIConfig_Validate verifies configuration validation.
func TestCLIConfig_Validate(t *testing.T) {
	valid := func(mutate func(*CLIConfig)) *CLIConfig {
		cfg := DefaultConfig()
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		cfg    *CLIConfig
		errMsg string
	}{
		{"valid config", DefaultConfig(), ""},
		{"json logs", valid(func(c *CLIConfig) { c.LogFormat = LogFormatJSON }), ""},
		{"warning level", valid(func(c *CLIConfig) { c.LogLevel = "WARNING" }), ""},
		{"invalid output format", valid(func(c *CLIConfig) { c.OutputFormat = "pdf" }), "invalid output_format"},
		{"invalid log level", valid(func(c *CLIConfig) { c.LogLevel = "loud" }), "invalid log_level"},
		{"invalid log format", valid(func(c *CLIConfig) { c.LogFormat = "xml" }), "invalid log_format"},
		{"empty serve addr", valid(func(c *CLIConfig) { c.ServeAddr = "" }), "serve_addr is required"},
		{"zero cache ttl", valid(func(c *CLIConfig) { c.CacheTTL = 0 }), "cache_ttl must be positive"},
		{"negative timeout", valid(func(c *CLIConfig) { c.Timeout = -time.Second }), "timeout must be positive"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tc.errMsg)
			} else if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tc.errMsg)
			}
		})
	}
}

// TestConfigDir verifies config directory path resolution.
func TestConfigDir(t *testing.T) {
	t.Run("with env var", func(t *testing.T) {
		customDir := filepath.Join(t.TempDir(), "custom")
		t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", customDir)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != customDir {
			t.Errorf("ConfigDir() = %v, want %v", dir, customDir)
		}
	})

	t.Run("default without env var", func(t *testing.T) {
		t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultConfigDir)
		if dir != expected {
			t.Errorf("ConfigDir() = %v, want %v", dir, expected)
		}
	})
}

// TestConfigPath verifies config file path resolution.
func TestConfigPath(t *testing.T) {
	customDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", customDir)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}

	expected := filepath.Join(customDir, DefaultConfigFile)
	if path != expected {
		t.Errorf("ConfigPath() = %v, want %v", path, expected)
	}
}

// TestLoadConfig_Defaults verifies default values when no config exists.
func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
}

// TestLoadConfig_FromFile verifies loading configuration from a YAML file.
func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)

	content := `settings_path: ~/notes/.speech-bubbles.toml
output_format: html
log_level: debug
log_format: json
serve_addr: 0.0.0.0:9000
notes_root: /srv/vault
redis_addr: redis:6379
cache_ttl: 2m
timeout: 5s
debug: true
`
	if err := os.WriteFile(filepath.Join(tempDir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.SettingsPath != "~/notes/.speech-bubbles.toml" {
		t.Errorf("SettingsPath = %v", cfg.SettingsPath)
	}
	if cfg.OutputFormat != OutputFormatHTML {
		t.Errorf("OutputFormat = %v, want html", cfg.OutputFormat)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != LogFormatJSON {
		t.Errorf("logging = %v/%v, want debug/json", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ServeAddr != "0.0.0.0:9000" {
		t.Errorf("ServeAddr = %v", cfg.ServeAddr)
	}
	if cfg.NotesRoot != "/srv/vault" {
		t.Errorf("NotesRoot = %v", cfg.NotesRoot)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %v", cfg.RedisAddr)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", cfg.CacheTTL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

// TestLoadConfig_WithEnvOverrides verifies environment variable overrides.
func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)
	if err := os.WriteFile(filepath.Join(tempDir, DefaultConfigFile), []byte("output_format: html\nserve_addr: file:1\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("SPEECH_BUBBLES_OUTPUT_FORMAT", "json")
	t.Setenv("SPEECH_BUBBLES_SERVE_ADDR", "env:2")
	t.Setenv("SPEECH_BUBBLES_CACHE_TTL", "30s")
	t.Setenv("SPEECH_BUBBLES_REDIS_PASSWORD", "secret")
	t.Setenv("SPEECH_BUBBLES_DEBUG", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.ServeAddr != "env:2" {
		t.Errorf("ServeAddr = %v, want env:2", cfg.ServeAddr)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.CacheTTL)
	}
	if cfg.RedisPassword != "secret" {
		t.Errorf("RedisPassword = %v, want secret", cfg.RedisPassword)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

// TestLoadConfig_DotEnv verifies .env files in the config directory are read
// without overriding variables already set.
func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)
	t.Setenv("SPEECH_BUBBLES_LOG_LEVEL", "error")
	// godotenv skips keys present in the environment, even when empty.
	os.Unsetenv("SPEECH_BUBBLES_NOTES_ROOT")

	env := "SPEECH_BUBBLES_NOTES_ROOT=/from/dotenv\nSPEECH_BUBBLES_LOG_LEVEL=debug\n"
	if err := os.WriteFile(filepath.Join(tempDir, DefaultEnvFile), []byte(env), 0600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.NotesRoot != "/from/dotenv" {
		t.Errorf("NotesRoot = %v, want /from/dotenv", cfg.NotesRoot)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %v, want error (env beats .env)", cfg.LogLevel)
	}
}

// TestLoadConfig_InvalidDuration verifies bad durations are reported.
func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	tempDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)

	path := filepath.Join(tempDir, DefaultConfigFile)
	if err := os.WriteFile(path, []byte("cache_ttl: soon\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for invalid cache_ttl")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing config: %v", err)
	}
	t.Setenv("SPEECH_BUBBLES_TIMEOUT", "later")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for invalid SPEECH_BUBBLES_TIMEOUT")
	}
}

// TestLoadConfig_InvalidOutputFormat verifies validation runs after loading.
func TestLoadConfig_InvalidOutputFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", t.TempDir())
	t.Setenv("SPEECH_BUBBLES_OUTPUT_FORMAT", "pdf")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "validating config") {
		t.Errorf("LoadConfig() error = %v, want validation error", err)
	}
}

// TestSaveConfig verifies the config round-trips through the file.
func TestSaveConfig(t *testing.T) {
	clearEnv(t)
	tempDir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)

	cfg := DefaultConfig()
	cfg.OutputFormat = OutputFormatPage
	cfg.RedisAddr = "localhost:6379"
	cfg.CacheTTL = 90 * time.Second

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(tempDir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.OutputFormat != OutputFormatPage {
		t.Errorf("OutputFormat = %v, want page", loaded.OutputFormat)
	}
	if loaded.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %v", loaded.RedisAddr)
	}
	if loaded.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 1m30s", loaded.CacheTTL)
	}
}

// TestResolveSettingsPath verifies the settings path default and ~ expansion.
func TestResolveSettingsPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", tempDir)

	cfg := DefaultConfig()
	path, err := cfg.ResolveSettingsPath()
	if err != nil {
		t.Fatalf("ResolveSettingsPath() error = %v", err)
	}
	if want := filepath.Join(tempDir, DefaultSettingsFile); path != want {
		t.Errorf("ResolveSettingsPath() = %v, want %v", path, want)
	}

	cfg.SettingsPath = "~/vault/settings.json"
	path, err = cfg.ResolveSettingsPath()
	if err != nil {
		t.Fatalf("ResolveSettingsPath() error = %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "vault", "settings.json"); path != want {
		t.Errorf("ResolveSettingsPath() = %v, want %v", path, want)
	}
}

// TestExpandPath verifies ~ expansion.
func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"~", home},
		{"~/notes", filepath.Join(home, "notes")},
		{"~other/notes", "~other/notes"},
	}
	for _, tc := range tests {
		got, err := ExpandPath(tc.in)
		if err != nil {
			t.Errorf("ExpandPath(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ExpandPath(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// TestEnsureConfigDir verifies directory creation.
func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	t.Setenv("SPEECH_BUBBLES_CONFIG_DIR", dir)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("config dir not created: %v", err)
	}
}
