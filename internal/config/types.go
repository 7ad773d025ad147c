package config

import (
	"time"

	"github.com/empathlabs/aingest/internal/adapter/repair"
)

// Config is the full application configuration
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Repair   RepairConfig   `mapstructure:"repair"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EndpointConfig describes the OpenAI-compatible endpoint requests go to.
type EndpointConfig struct {
	URL            string            `mapstructure:"url"`
	Model          string            `mapstructure:"model"`
	APIKey         string            `mapstructure:"api_key"`
	Headers        map[string]string `mapstructure:"headers"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// ParserConfig tunes the parse pipeline itself.
type ParserConfig struct {
	OperationType     string `mapstructure:"operation_type"`
	FallbackThreshold int    `mapstructure:"fallback_threshold"`
}

// RepairConfig switches individual repair stages on and off.
type RepairConfig struct {
	UnicodeFix bool `mapstructure:"unicode_fix"`
	FormatFix  bool `mapstructure:"format_fix"`
	FuzzyFix   bool `mapstructure:"fuzzy_fix"`
}

// Options converts the config switches into the repair package's option set.
func (c RepairConfig) Options() repair.Options {
	return repair.Options{
		UnicodeFix: c.UnicodeFix,
		FormatFix:  c.FormatFix,
		FuzzyFix:   c.FuzzyFix,
	}
}

// LoggingConfig mirrors the logger package's configuration surface.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Theme      string `mapstructure:"theme"`
	LogDir     string `mapstructure:"log_dir"`
	FileOutput bool   `mapstructure:"file_output"`
}
