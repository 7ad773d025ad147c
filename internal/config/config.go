package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/empathlabs/aingest/internal/adapter/sse"
)

const envPrefix = "AINGEST"

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:            "http://localhost:11434/v1/chat/completions",
			Model:          "llama3",
			RequestTimeout: 10 * time.Minute, // LLM responses are slow
		},
		Parser: ParserConfig{
			OperationType:     "chat",
			FallbackThreshold: sse.DefaultFallbackThreshold,
		},
		Repair: RepairConfig{
			UnicodeFix: true,
			FormatFix:  true,
			FuzzyFix:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Theme:  "default",
			LogDir: "./logs",
		},
	}
}

var (
	vmu sync.Mutex
	v   *viper.Viper
)

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	vmu.Lock()
	defer vmu.Unlock()

	v = viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvKeys(v)

	config := DefaultConfig()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have AINGEST_CONFIG_FILE env var
		if configFile := os.Getenv(envPrefix + "_CONFIG_FILE"); configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Watch re-reads the config file when it changes on disk and hands the fresh
// configuration to onChange. Invalid edits are dropped so a half-saved file
// never replaces a working configuration.
func Watch(onChange func(*Config)) {
	vmu.Lock()
	defer vmu.Unlock()
	if v == nil {
		return
	}

	watched := v
	watched.OnConfigChange(func(_ fsnotify.Event) {
		config := DefaultConfig()
		if err := watched.Unmarshal(config); err != nil {
			return
		}
		if err := config.Validate(); err != nil {
			return
		}
		onChange(config)
	})
	watched.WatchConfig()
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.Endpoint.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("endpoint.url %q is not a valid URL", c.Endpoint.URL)
	}
	if c.Endpoint.Model == "" {
		return fmt.Errorf("endpoint.model must not be empty")
	}
	if c.Parser.FallbackThreshold <= 0 {
		return fmt.Errorf("parser.fallback_threshold must be positive, got %d", c.Parser.FallbackThreshold)
	}
	return nil
}

// AutomaticEnv alone does not surface env vars through Unmarshal; each key
// has to be bound explicitly.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"endpoint.url",
		"endpoint.model",
		"endpoint.api_key",
		"endpoint.request_timeout",
		"parser.operation_type",
		"parser.fallback_threshold",
		"repair.unicode_fix",
		"repair.format_fix",
		"repair.fuzzy_fix",
		"logging.level",
		"logging.theme",
		"logging.log_dir",
		"logging.file_output",
	} {
		_ = v.BindEnv(key)
	}
}
