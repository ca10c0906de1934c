// Package config handles configuration loading and validation for roipivot.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidSyntax   ConfigErrorType = "INVALID_SYNTAX"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		if e.Message != "" {
			return fmt.Sprintf("configuration file not readable: %s (%s)", e.Path, e.Message)
		}
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidSyntax:
		return fmt.Sprintf("invalid syntax in configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// Environment variables that override file settings.
const (
	EnvOutputDir  = "ROIPIVOT_OUTPUT_DIR"
	EnvSQLitePath = "ROIPIVOT_SQLITE_PATH"
	EnvAuditDir   = "ROIPIVOT_AUDIT_DIR"
	EnvS3Region   = "ROIPIVOT_S3_REGION"
	EnvS3Profile  = "ROIPIVOT_S3_PROFILE"
)

// Defaults for the watch section.
const (
	DefaultDebounceSeconds   = 2
	DefaultStableThresholdMs = 1000
)

// AuditConfig controls the conversion log.
type AuditConfig struct {
	LogDirectory string `json:"logDirectory" yaml:"logDirectory" toml:"logDirectory"` // empty disables the log
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceSeconds   int      `json:"debounceSeconds" yaml:"debounceSeconds" toml:"debounceSeconds"`
	StableThresholdMs int      `json:"stableThresholdMs" yaml:"stableThresholdMs" toml:"stableThresholdMs"`
	IgnorePatterns    []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty" toml:"ignorePatterns,omitempty"`
}

// S3Config selects the AWS region and profile used for s3:// paths.
type S3Config struct {
	Region  string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty" toml:"profile,omitempty"`
}

// Configuration holds all settings for roipivot.
type Configuration struct {
	OutputDirectory string                         `json:"outputDirectory" yaml:"outputDirectory" toml:"outputDirectory"`
	SQLitePath      string                         `json:"sqlitePath,omitempty" yaml:"sqlitePath,omitempty" toml:"sqlitePath,omitempty"`
	TargetMetrics   []vocabulary.Metric            `json:"targetMetrics" yaml:"targetMetrics" toml:"targetMetrics"`
	MetricMapping   map[string]vocabulary.MetricID `json:"metricMapping" yaml:"metricMapping" toml:"metricMapping"`
	DateKeywords    []string                       `json:"dateKeywords" yaml:"dateKeywords" toml:"dateKeywords"`
	Audit           AuditConfig                    `json:"audit" yaml:"audit" toml:"audit"`
	Watch           WatchConfig                    `json:"watch" yaml:"watch" toml:"watch"`
	S3              S3Config                       `json:"s3" yaml:"s3" toml:"s3"`
}

// Default returns the configuration used when no file is given.
func Default() *Configuration {
	cfg := &Configuration{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields. When targetMetrics is set but
// metricMapping is not, the built-in tokens for the declared metrics are used.
func (c *Configuration) ApplyDefaults() {
	if c.OutputDirectory == "" {
		c.OutputDirectory = "."
	}
	if len(c.TargetMetrics) == 0 {
		c.TargetMetrics = vocabulary.DefaultTargets()
	}
	if len(c.MetricMapping) == 0 {
		declared := make(map[vocabulary.MetricID]bool, len(c.TargetMetrics))
		for _, m := range c.TargetMetrics {
			declared[m.ID] = true
		}
		c.MetricMapping = make(map[string]vocabulary.MetricID)
		for token, id := range vocabulary.DefaultMapping() {
			if declared[id] {
				c.MetricMapping[token] = id
			}
		}
	}
	if len(c.DateKeywords) == 0 {
		c.DateKeywords = vocabulary.DefaultDateKeywords()
	}
	if c.Watch.DebounceSeconds == 0 {
		c.Watch.DebounceSeconds = DefaultDebounceSeconds
	}
	if c.Watch.StableThresholdMs == 0 {
		c.Watch.StableThresholdMs = DefaultStableThresholdMs
	}
}

// ApplyEnv overrides settings from ROIPIVOT_* environment variables.
func (c *Configuration) ApplyEnv() {
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDirectory = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv(EnvAuditDir); v != "" {
		c.Audit.LogDirectory = v
	}
	if v := os.Getenv(EnvS3Region); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv(EnvS3Profile); v != "" {
		c.S3.Profile = v
	}
}

// Validate checks that the configuration can produce a vocabulary.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.OutputDirectory) == "" {
		return &ConfigError{Type: ValidationError, Message: "outputDirectory cannot be empty"}
	}
	if c.Watch.DebounceSeconds < 0 {
		return &ConfigError{Type: ValidationError, Message: "watch.debounceSeconds must not be negative"}
	}
	if c.Watch.StableThresholdMs < 0 {
		return &ConfigError{Type: ValidationError, Message: "watch.stableThresholdMs must not be negative"}
	}
	if _, err := c.Vocabulary(); err != nil {
		return &ConfigError{Type: ValidationError, Message: err.Error()}
	}
	return nil
}

// Vocabulary builds the immutable vocabulary described by the configuration.
func (c *Configuration) Vocabulary() (*vocabulary.Vocabulary, error) {
	return vocabulary.New(c.TargetMetrics, c.MetricMapping, c.DateKeywords)
}

// Load reads a configuration file with Parse and validates it.
func Load(filePath string) (*Configuration, error) {
	cfg, err := Parse(filePath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads a configuration file without validating it. The format follows
// the extension: .yaml/.yml, .toml, anything else JSON. Defaults, then the
// file, then environment variables apply, in that order.
func Parse(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Type: FileNotFound, Path: filePath}
		}
		return nil, &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error()}
	}

	cfg, err := parse(filePath, data)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadOrDefault loads filePath, or returns the defaults (with environment
// overrides) when filePath is empty. A named file that does not exist is an
// error.
func LoadOrDefault(filePath string) (*Configuration, error) {
	if filePath != "" {
		return Load(filePath)
	}

	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(filePath string, data []byte) (*Configuration, error) {
	var cfg Configuration
	var err error

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, &ConfigError{Type: InvalidSyntax, Path: filePath, Message: err.Error()}
	}
	return &cfg, nil
}

// formatField creates a field reference string for validation messages.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}
