// Package config provides CLI configuration management for the speech-bubbles tool.
// It supports loading configuration from YAML files, .env files, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for rendered notes.
type OutputFormat string

const (
	// OutputFormatTerminal draws bubbles with box characters for a terminal.
	OutputFormatTerminal OutputFormat = "terminal"
	// OutputFormatHTML is an HTML fragment.
	OutputFormatHTML OutputFormat = "html"
	// OutputFormatPage is a standalone HTML page with the stylesheet inlined.
	OutputFormatPage OutputFormat = "page"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Default configuration values.
const (
	DefaultOutputFormat = OutputFormatTerminal
	DefaultLogLevel     = "info"
	DefaultLogFormat    = LogFormatConsole
	DefaultServeAddr    = "localhost:8765"
	DefaultNotesRoot    = "."
	DefaultCacheTTL     = 10 * time.Minute
	DefaultTimeout      = 30 * time.Second
	DefaultConfigDir    = ".speech-bubbles"
	DefaultConfigFile   = "config.yaml"
	DefaultSettingsFile = "settings.yaml"
	DefaultEnvFile      = ".env"

	// EnvPrefix prefixes every environment variable the CLI reads.
	EnvPrefix = "SPEECH_BUBBLES_"
)

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// SettingsPath is the bubble settings file (YAML, TOML or JSON).
	// Empty means settings.yaml in the config directory.
	SettingsPath string `yaml:"settings_path,omitempty"`

	// OutputFormat specifies the default output format for render.
	OutputFormat OutputFormat `yaml:"output_format"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is console or json.
	LogFormat string `yaml:"log_format"`

	// ServeAddr is the listen address of the preview server.
	ServeAddr string `yaml:"serve_addr"`

	// NotesRoot is the directory the preview server serves notes from.
	NotesRoot string `yaml:"notes_root"`

	// RedisAddr enables the shared render cache. Empty uses an in-process cache.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// RedisPassword authenticates against RedisAddr.
	RedisPassword string `yaml:"redis_password,omitempty"`

	// CacheTTL is how long rendered output is cached.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Timeout bounds a single render in the preview server.
	Timeout time.Duration `yaml:"timeout"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// configFile mirrors CLIConfig with durations as strings.
type configFile struct {
	SettingsPath  string       `yaml:"settings_path,omitempty"`
	OutputFormat  OutputFormat `yaml:"output_format,omitempty"`
	LogLevel      string       `yaml:"log_level,omitempty"`
	LogFormat     string       `yaml:"log_format,omitempty"`
	ServeAddr     string       `yaml:"serve_addr,omitempty"`
	NotesRoot     string       `yaml:"notes_root,omitempty"`
	RedisAddr     string       `yaml:"redis_addr,omitempty"`
	RedisPassword string       `yaml:"redis_password,omitempty"`
	CacheTTL      string       `yaml:"cache_ttl,omitempty"`
	Timeout       string       `yaml:"timeout,omitempty"`
	Debug         bool         `yaml:"debug,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat: DefaultOutputFormat,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		ServeAddr:    DefaultServeAddr,
		NotesRoot:    DefaultNotesRoot,
		CacheTTL:     DefaultCacheTTL,
		Timeout:      DefaultTimeout,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SPEECH_BUBBLES_CONFIG_DIR if set, otherwise ~/.speech-bubbles
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadDotEnv loads .env from the working directory and then from the config
// directory. Variables already set in the environment are never overridden,
// and missing files are skipped.
func LoadDotEnv() error {
	paths := []string{DefaultEnvFile}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, DefaultEnvFile))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads the CLI configuration from the default config file.
func LoadConfig() (*CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the CLI configuration from path and the environment.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file, if it exists
// 3. .env files (see LoadDotEnv)
// 4. Environment variables (SPEECH_BUBBLES_*)
func LoadConfigFrom(configPath string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.SettingsPath != "" {
		cfg.SettingsPath = fileCfg.SettingsPath
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFormat != "" {
		cfg.LogFormat = fileCfg.LogFormat
	}
	if fileCfg.ServeAddr != "" {
		cfg.ServeAddr = fileCfg.ServeAddr
	}
	if fileCfg.NotesRoot != "" {
		cfg.NotesRoot = fileCfg.NotesRoot
	}
	if fileCfg.RedisAddr != "" {
		cfg.RedisAddr = fileCfg.RedisAddr
	}
	if fileCfg.RedisPassword != "" {
		cfg.RedisPassword = fileCfg.RedisPassword
	}
	if fileCfg.CacheTTL != "" {
		ttl, err := time.ParseDuration(fileCfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	cfg.Debug = fileCfg.Debug

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) error {
	if v := os.Getenv(EnvPrefix + "SETTINGS_PATH"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv(EnvPrefix + "SERVE_ADDR"); v != "" {
		cfg.ServeAddr = v
	}
	if v := os.Getenv(EnvPrefix + "NOTES_ROOT"); v != "" {
		cfg.NotesRoot = v
	}
	if v := os.Getenv(EnvPrefix + "REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv(EnvPrefix + "REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sCACHE_TTL: %w", EnvPrefix, err)
		}
		cfg.CacheTTL = ttl
	}
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sTIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Timeout = timeout
	}
	if v := os.Getenv(EnvPrefix + "DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be terminal, html, page, json, or yaml)", c.OutputFormat)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.LogFormat != LogFormatConsole && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}

	if c.ServeAddr == "" {
		return fmt.Errorf("serve_addr is required")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatTerminal, OutputFormatHTML, OutputFormatPage, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// ResolveSettingsPath returns the expanded settings file path, defaulting to
// settings.yaml in the config directory.
func (c *CLIConfig) ResolveSettingsPath() (string, error) {
	if c.SettingsPath != "" {
		return ExpandPath(c.SettingsPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultSettingsFile), nil
}

// SaveConfig saves the configuration to the default config file.
func SaveConfig(cfg *CLIConfig) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}
	return SaveConfigTo(cfg, configPath)
}

// SaveConfigTo saves the configuration to path.
func SaveConfigTo(cfg *CLIConfig, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	fileCfg := configFile{
		SettingsPath:  cfg.SettingsPath,
		OutputFormat:  cfg.OutputFormat,
		LogLevel:      cfg.LogLevel,
		LogFormat:     cfg.LogFormat,
		ServeAddr:     cfg.ServeAddr,
		NotesRoot:     cfg.NotesRoot,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		CacheTTL:      cfg.CacheTTL.String(),
		Timeout:       cfg.Timeout.String(),
		Debug:         cfg.Debug,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
