package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Telegram.Token = expandEnvVars(cfg.Telegram.Token)
	cfg.Telegram.WebhookSecret = expandEnvVars(cfg.Telegram.WebhookSecret)
	cfg.AI.APIKey = expandEnvVars(cfg.AI.APIKey)
	cfg.Gateway.MonitorToken = expandEnvVars(cfg.Gateway.MonitorToken)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields after an unmarshal, since a
// partial YAML file overwrites the pre-seeded defaults wholesale.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = d.AI.Provider
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = d.AI.Model
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = d.AI.MaxTokens
	}
	if cfg.AI.RequestTimeout == 0 {
		cfg.AI.RequestTimeout = d.AI.RequestTimeout
	}
	if cfg.Orchestrator.ContextWindowSize == 0 {
		cfg.Orchestrator.ContextWindowSize = d.Orchestrator.ContextWindowSize
	}
	if cfg.Orchestrator.RetryMaxAttempts == 0 {
		cfg.Orchestrator.RetryMaxAttempts = d.Orchestrator.RetryMaxAttempts
	}
	if cfg.Orchestrator.RetryBaseDelay == 0 {
		cfg.Orchestrator.RetryBaseDelay = d.Orchestrator.RetryBaseDelay
	}
	if cfg.Orchestrator.RetryBackoffFactor == 0 {
		cfg.Orchestrator.RetryBackoffFactor = d.Orchestrator.RetryBackoffFactor
	}
	if cfg.Orchestrator.OverallDeadline == 0 {
		cfg.Orchestrator.OverallDeadline = d.Orchestrator.OverallDeadline
	}
	if cfg.Session.Scope == "" {
		cfg.Session.Scope = d.Session.Scope
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = d.Session.Store
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Gateway.DedupeTTL == 0 {
		cfg.Gateway.DedupeTTL = d.Gateway.DedupeTTL
	}
	if cfg.Gateway.DedupeMaxSize == 0 {
		cfg.Gateway.DedupeMaxSize = d.Gateway.DedupeMaxSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}

// applyEnvOverrides reads TGRELAY_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" && cfg.Telegram.Token == "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.AI.APIKey == "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("TGRELAY_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("TGRELAY_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("TGRELAY_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("TGRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
