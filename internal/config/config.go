// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// Config is the top-level gateway configuration, matching the external
// interface's {host, port, prometheus_host, prometheus_port,
// trust_header_authentication, models} shape plus the ambient sections this
// repo adds on top (database location, telemetry, the optional usage
// mirror).
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Admin      AdminConfig      `yaml:"admin"`
	Echo       EchoConfig       `yaml:"echo"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	UsageMirror UsageMirrorConfig `yaml:"usage_mirror"`
	Models     []ModelEntry     `yaml:"models"`
}

// ServerConfig holds the client-facing HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// PrometheusConfig holds the metrics-exposition listener settings.
type PrometheusConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AdminConfig holds the loopback-only admin API listener settings.
type AdminConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EchoConfig holds the loopback-only echo service listener settings.
type EchoConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds SQLite settings for the store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// AuthConfig holds the trusted-header authentication settings.
type AuthConfig struct {
	// TrustHeaderAuthentication lists header names whose mere presence
	// authoritatively identifies the caller, bypassing bearer-token lookup.
	TrustHeaderAuthentication []string `yaml:"trust_header_authentication"`
	// LoginGuardHeader/LoginGuardValue implement the hard-coded placeholder
	// login credential check from §9's design note. Do not treat this as a
	// real credential verifier; it is flagged there as a stub.
	LoginGuardHeader string `yaml:"login_guard_header"`
	LoginGuardValue  string `yaml:"login_guard_value"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// UsageMirrorConfig controls the optional cross-process usage visibility
// mirror described in SPEC_FULL.md §5. Disabled by default: the rate
// limiter and usage accounting remain process-local regardless.
type UsageMirrorConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addrs       []string `yaml:"addrs"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ModelEntry is a Model entry as read from the config file.
type ModelEntry struct {
	Location         string   `yaml:"location"`
	ProxyPass        string   `yaml:"proxy_pass"`
	APIKey           string   `yaml:"api_key"`
	Parser           string   `yaml:"parser"`
	DisabledGroups   string   `yaml:"disabled_groups"` // comma list
	BlacklistWords   string   `yaml:"blacklist_words"` // comma list
	PIIProtectionURL string   `yaml:"pii_protection_url"`
	Budget           BudgetEntry `yaml:"budget"`
	Rate             RateEntry   `yaml:"rate"`
}

// BudgetEntry mirrors gateway.TokenBudget in config-file form.
type BudgetEntry struct {
	InputPerHour   int64 `yaml:"input_per_hour"`
	InputPerDay    int64 `yaml:"input_per_day"`
	InputPerMonth  int64 `yaml:"input_per_month"`
	InputPerYear   int64 `yaml:"input_per_year"`
	OutputPerHour  int64 `yaml:"output_per_hour"`
	OutputPerDay   int64 `yaml:"output_per_day"`
	OutputPerMonth int64 `yaml:"output_per_month"`
	OutputPerYear  int64 `yaml:"output_per_year"`
}

// RateEntry mirrors gateway.RateBudget in config-file form.
type RateEntry struct {
	Requests int64         `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
// Required fields (server.host, server.port) fail startup if absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{
		Server: ServerConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		Database: DatabaseConfig{DSN: "burgonet.db"},
		Echo:     EchoConfig{Host: "127.0.0.1", Port: 6190},
		Admin:    AdminConfig{Host: "127.0.0.1", Port: 6189},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Host == "" || cfg.Server.Port == 0 {
		return nil, fmt.Errorf("config: server.host and server.port are required")
	}
	return cfg, nil
}

// DomainModels converts the config-file model entries into domain Model values.
func (c *Config) DomainModels() []gateway.Model {
	out := make([]gateway.Model, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, gateway.Model{
			Location:         m.Location,
			ProxyPass:        m.ProxyPass,
			APIKey:           m.APIKey,
			Parser:           m.Parser,
			DisabledGroups:   splitTrim(m.DisabledGroups),
			BlacklistWords:   splitTrim(m.BlacklistWords),
			PIIProtectionURL: m.PIIProtectionURL,
			Budget: gateway.TokenBudget{
				InputPerHour:   m.Budget.InputPerHour,
				InputPerDay:    m.Budget.InputPerDay,
				InputPerMonth:  m.Budget.InputPerMonth,
				InputPerYear:   m.Budget.InputPerYear,
				OutputPerHour:  m.Budget.OutputPerHour,
				OutputPerDay:   m.Budget.OutputPerDay,
				OutputPerMonth: m.Budget.OutputPerMonth,
				OutputPerYear:  m.Budget.OutputPerYear,
			},
			Rate: gateway.RateBudget{Requests: m.Rate.Requests, Window: m.Rate.Window},
		})
	}
	return out
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			field := trimSpace(s[start:i])
			if field != "" {
				out = append(out, field)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
