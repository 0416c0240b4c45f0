// Package config loads askify's settings from defaults, an optional YAML
// file, and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/waseemkhan00777/askify-gemini/internal/logging"
	"github.com/waseemkhan00777/askify-gemini/internal/provider"
)

// EnvPrefix namespaces every environment variable, e.g. ASKIFY_PROVIDER_NAME.
const EnvPrefix = "ASKIFY"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Provider ProviderConfig `mapstructure:"provider"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Framing         string        `mapstructure:"framing"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type ProviderConfig struct {
	Name        string        `mapstructure:"name"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyParam string        `mapstructure:"api_key_param"`
	AWSRegion   string        `mapstructure:"aws_region"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	EchoDelay   time.Duration `mapstructure:"echo_delay"`
}

// OllamaConfig controls the startup wait for a local Ollama daemon.
type OllamaConfig struct {
	Wait         bool          `mapstructure:"wait"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	WaitInterval time.Duration `mapstructure:"wait_interval"`
	WaitModels   []string      `mapstructure:"wait_models"`
}

// SetDefaults registers every key so that env overrides are picked up by
// Unmarshal, and binds the legacy variable names.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "8080")
	v.SetDefault("server.framing", "raw")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("provider.name", provider.NameGemini)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.api_key_param", "")
	v.SetDefault("provider.aws_region", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", time.Duration(0))
	v.SetDefault("provider.echo_delay", 30*time.Millisecond)

	v.SetDefault("ollama.wait", true)
	v.SetDefault("ollama.wait_timeout", 180*time.Second)
	v.SetDefault("ollama.wait_interval", 2*time.Second)
	v.SetDefault("ollama.wait_models", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("server.addr", "ASKIFY_SERVER_ADDR", "ADDR", "PORT")
	_ = v.BindEnv("log.level", "ASKIFY_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log.json", "ASKIFY_LOG_JSON", "LOG_JSON")
	_ = v.BindEnv("provider.api_key", "ASKIFY_API_KEY", "ASKIFY_PROVIDER_API_KEY", "GEMINI_API_KEY", "OPEN_AI_KEY")
	_ = v.BindEnv("ollama.wait", "ASKIFY_OLLAMA_WAIT", "OLLAMA_WAIT")
	_ = v.BindEnv("ollama.wait_timeout", "ASKIFY_OLLAMA_WAIT_TIMEOUT", "OLLAMA_WAIT_TIMEOUT")
	_ = v.BindEnv("ollama.wait_models", "ASKIFY_OLLAMA_WAIT_MODELS", "OLLAMA_WAIT_MODELS")
}

// Load reads the config file named by v (if any) and returns the validated
// configuration. A missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	cfg.Server.Framing = strings.ToLower(strings.TrimSpace(cfg.Server.Framing))
	cfg.Ollama.WaitModels = splitFields(cfg.Ollama.WaitModels)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	switch c.Server.Framing {
	case "raw", "sse":
	default:
		errs = append(errs, fmt.Errorf("server.framing must be raw or sse, got %q", c.Server.Framing))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be > 0"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, ok := provider.DefaultModels[c.Provider.Name]; !ok {
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider.Name))
	} else if provider.RequiresAPIKey(c.Provider.Name) && c.Provider.APIKey == "" && c.Provider.APIKeyParam == "" {
		errs = append(errs, fmt.Errorf("provider %s needs provider.api_key (GEMINI_API_KEY) or provider.api_key_param", c.Provider.Name))
	}
	if c.Provider.Timeout < 0 {
		errs = append(errs, errors.New("provider.timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// ListenAddr accepts either a bare port or a host:port.
func (c *Config) ListenAddr() string {
	if strings.Contains(c.Server.Addr, ":") {
		return c.Server.Addr
	}
	return ":" + c.Server.Addr
}

// splitFields lets list values come from a space separated env var.
func splitFields(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.Fields(strings.ReplaceAll(s, ",", " "))...)
	}
	return out
}
