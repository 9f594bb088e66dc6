// Package config loads crewsum's application settings and the crew file that
// defines the pipeline's roles and tasks.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/crewsum/pkg/errors"
)

// EnvPrefix prefixes every environment override (CREWSUM_LLM_MODEL -> llm.model).
const EnvPrefix = "CREWSUM_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Crew      CrewConfig      `koanf:"crew"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// LLMConfig selects the provider and model. API keys are never read from here.
type LLMConfig struct {
	Provider            string   `koanf:"provider"` // anthropic, openai
	Model               string   `koanf:"model"`
	BaseURL             string   `koanf:"base_url"`
	Temperature         *float64 `koanf:"temperature"` // nil leaves the provider default
	MaxTokens           int64    `koanf:"max_tokens"`
	RetryMaxAttempts    int      `koanf:"retry_max_attempts"`
	RetryInitialDelayMS int      `koanf:"retry_initial_delay_ms"`
	RetryMaxDelayMS     int      `koanf:"retry_max_delay_ms"`
}

type CrewConfig struct {
	Path                 string `koanf:"path"`
	Watch                bool   `koanf:"watch"`
	WatchIntervalSeconds int    `koanf:"watch_interval_seconds"`
}

type PipelineConfig struct {
	TimeoutSeconds int  `koanf:"timeout_seconds"`
	KeepAnalysis   bool `koanf:"keep_analysis"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

type ServerConfig struct {
	Addr                  string `koanf:"addr"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
}

// Timeout returns the run deadline, zero meaning none.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request deadline, zero meaning none.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// WatchInterval returns the crew file polling interval.
func (c CrewConfig) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSeconds) * time.Second
}

// RetryInitialDelay returns the first backoff delay.
func (l LLMConfig) RetryInitialDelay() time.Duration {
	return time.Duration(l.RetryInitialDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (l LLMConfig) RetryMaxDelay() time.Duration {
	return time.Duration(l.RetryMaxDelayMS) * time.Millisecond
}

// LoadOptions controls the layering performed by LoadWithOptions.
type LoadOptions struct {
	// Path is the base YAML file; empty means defaults and env only.
	Path string
	// Profile overlays config.<profile>.yaml next to Path when it exists.
	Profile string
	// Sets are key=value overrides applied last.
	Sets []string
}

var defaults = map[string]any{
	"log.level":                      "info",
	"log.format":                     "text",
	"llm.provider":                   "openai",
	"llm.model":                      "",
	"llm.max_tokens":                 0,
	"llm.retry_max_attempts":         1,
	"llm.retry_initial_delay_ms":     500,
	"llm.retry_max_delay_ms":         10000,
	"crew.path":                      "config/crew.yaml",
	"crew.watch":                     false,
	"crew.watch_interval_seconds":    2,
	"pipeline.timeout_seconds":       300,
	"pipeline.keep_analysis":         false,
	"telemetry.exporter":             "none",
	"telemetry.service_name":         "crewsum",
	"server.addr":                    ":8080",
	"server.request_timeout_seconds": 180,
}

// Load reads defaults, the optional file at path and CREWSUM_* env vars.
func Load(path string) (*Config, error) {
	return LoadWithOptions(LoadOptions{Path: path})
}

// LoadWithOptions layers defaults, file, profile file, env and --set overrides.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if opts.Path != "" {
		if err := loadFile(k, opts.Path); err != nil {
			return nil, err
		}
		if profilePath := profileConfigPath(opts.Path, opts.Profile); profilePath != "" {
			if err := loadFile(k, profilePath); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for _, set := range opts.Sets {
		key, value, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.CodeConfigParse, "override must be key=value", nil).
				WithContext("override", set)
		}
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse, "invalid configuration value", err)
	}
	return &cfg, nil
}

// envKey maps CREWSUM_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.New(errors.CodeConfigNotFound, "configuration file not found", err).
				WithContext("path", path)
		}
		return errors.New(errors.CodeConfigNotFound, "configuration file not readable", err).
			WithContext("path", path)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return errors.New(errors.CodeConfigParse, "configuration file is not valid YAML", err).
			WithContext("path", path)
	}
	return nil
}

// profileConfigPath returns config.<profile>.yaml beside base when it exists.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	if ext == "" {
		ext = ".yaml"
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf("%s.%s%s", name, profile, ext))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
