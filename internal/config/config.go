// Package config loads the server configuration from the environment.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the server configuration. Every field maps to the
// upper-cased environment variable of its key.
type Config struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout" validate:"gt=0"`
	RateLimit       int           `mapstructure:"rate_limit_per_second" validate:"min=1"`

	DefaultAgent   string `mapstructure:"default_agent" validate:"required"`
	MaxSteps       int    `mapstructure:"max_steps" validate:"min=1,max=50"`
	ReportLanguage string `mapstructure:"report_language" validate:"required"`
	ReportTimezone string `mapstructure:"report_timezone" validate:"required,timezone"`

	GitHubToken  string `mapstructure:"github_token"`
	GitHubAPIURL string `mapstructure:"github_api_url" validate:"omitempty,url"`

	BedrockModelID string `mapstructure:"bedrock_model_id" validate:"required"`
	BedrockRegion  string `mapstructure:"bedrock_region" validate:"required"`
	BedrockAPIKey  string `mapstructure:"bedrock_api_key"`
	BedrockURL     string `mapstructure:"bedrock_endpoint" validate:"omitempty,url"`

	MemoryDSN          string `mapstructure:"memory_dsn"`
	MemoryLastMessages int    `mapstructure:"memory_last_messages" validate:"min=1"`

	AllowedIPs         []string `mapstructure:"allowed_ips"`
	TrustedProxyHeader string   `mapstructure:"trusted_proxy_header"`
	GatewayJWKSURL     string   `mapstructure:"gateway_jwks_url" validate:"omitempty,url"`

	LokiURL    string `mapstructure:"grafana_loki_url" validate:"omitempty,url"`
	LokiUser   string `mapstructure:"grafana_loki_user"`
	LokiAPIKey string `mapstructure:"grafana_loki_api_key"`

	AppEnv         string `mapstructure:"app_env"`
	InstanceID     string `mapstructure:"instance_id"`
	InstanceRegion string `mapstructure:"instance_region"`
}

var defaults = map[string]any{
	"port":                  8089,
	"log_level":             "info",
	"request_timeout":       30 * time.Second,
	"shutdown_timeout":      30 * time.Second,
	"tool_timeout":          30 * time.Second,
	"rate_limit_per_second": 10,
	"default_agent":         "chefAgent",
	"max_steps":             10,
	"report_language":       "English",
	"report_timezone":       "UTC",
	"bedrock_model_id":      "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	"bedrock_region":        "us-west-2",
	"memory_last_messages":  10,
	"app_env":               "dev",
	"instance_id":           "local",
	"instance_region":       "local",
}

// keys without a default, bound so that Unmarshal sees them
var optional = []string{
	"github_token",
	"github_api_url",
	"bedrock_api_key",
	"bedrock_endpoint",
	"memory_dsn",
	"allowed_ips",
	"trusted_proxy_header",
	"gateway_jwks_url",
	"grafana_loki_url",
	"grafana_loki_user",
	"grafana_loki_api_key",
}

// Load reads envFiles (missing files are skipped; variables already set in
// the environment win), then the environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range optional {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.AllowedIPs = splitList(cfg.AllowedIPs)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Location returns the zone report dates are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ReportTimezone)
}

// LokiEnabled reports whether Loki push is fully configured.
func (c *Config) LokiEnabled() bool {
	return c.LokiURL != "" && c.LokiUser != "" && c.LokiAPIKey != ""
}

// splitList normalizes a list that may arrive as one comma-separated
// element.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
