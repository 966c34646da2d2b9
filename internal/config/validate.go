package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Telegram.Token == "" {
		issues = append(issues, ValidationIssue{
			Path:    "telegram.token",
			Message: "bot token is required",
		})
	}
	if cfg.Telegram.WebhookURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "telegram.webhookUrl",
			Message: "public webhook URL is required",
		})
	}

	validProviders := []string{"gemini"}
	if cfg.AI.Provider != "" && !slices.Contains(validProviders, cfg.AI.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "ai.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.AI.Provider),
		})
	}
	if cfg.AI.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "ai.maxTokens",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.AI.MaxTokens),
		})
	}
	if cfg.AI.Temperature != nil && (*cfg.AI.Temperature < 0 || *cfg.AI.Temperature > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "ai.temperature",
			Message: fmt.Sprintf("must be in [0, 2], got %g", *cfg.AI.Temperature),
		})
	}
	if cfg.AI.RequestTimeout < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "ai.requestTimeout",
			Message: "must be non-negative",
		})
	}

	if cfg.Orchestrator.ContextWindowSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "orchestrator.contextWindowSize",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Orchestrator.ContextWindowSize),
		})
	}
	if cfg.Orchestrator.RetryMaxAttempts < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "orchestrator.retryMaxAttempts",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Orchestrator.RetryMaxAttempts),
		})
	}
	if cfg.Orchestrator.RetryBackoffFactor < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "orchestrator.retryBackoffFactor",
			Message: fmt.Sprintf("must be at least 1, got %g", cfg.Orchestrator.RetryBackoffFactor),
		})
	}
	if cfg.Orchestrator.OverallDeadline <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "orchestrator.overallDeadline",
			Message: "must be positive",
		})
	}

	validScopes := []string{"per-sender", "global"}
	if cfg.Session.Scope != "" && !slices.Contains(validScopes, cfg.Session.Scope) {
		issues = append(issues, ValidationIssue{
			Path:    "session.scope",
			Message: fmt.Sprintf("must be one of %v, got %q", validScopes, cfg.Session.Scope),
		})
	}
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
