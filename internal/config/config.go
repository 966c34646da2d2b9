// Package config loads and validates the tgrelay YAML configuration.
package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		AI: AIConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash",
			MaxTokens:      1024,
			RequestTimeout: 30 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			ContextWindowSize:  20,
			RetryMaxAttempts:   3,
			RetryBaseDelay:     200 * time.Millisecond,
			RetryBackoffFactor: 2.0,
			OverallDeadline:    10 * time.Second,
		},
		Session: SessionConfig{
			Scope: "per-sender",
			Store: "sqlite",
		},
		Gateway: GatewayConfig{
			Port:          8443,
			Bind:          "loopback",
			DedupeTTL:     10 * time.Minute,
			DedupeMaxSize: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
