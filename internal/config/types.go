package config

import "time"

// Config is the root configuration for tgrelay.
type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram,omitempty"`
	AI           AIConfig           `yaml:"ai,omitempty"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty"`
	Session      SessionConfig      `yaml:"session,omitempty"`
	Gateway      GatewayConfig      `yaml:"gateway,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
}

// TelegramConfig holds the bot credentials and webhook settings.
type TelegramConfig struct {
	Token         string `yaml:"token"`
	WebhookURL    string `yaml:"webhookUrl,omitempty"`    // public base URL, e.g. https://bot.example.com
	WebhookSecret string `yaml:"webhookSecret,omitempty"` // path secret; generated at startup when unset
}

// AIConfig configures the generative-AI backend.
type AIConfig struct {
	Provider       string        `yaml:"provider,omitempty"` // "gemini"
	APIKey         string        `yaml:"apiKey,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	Endpoint       string        `yaml:"endpoint,omitempty"` // override base URL
	MaxTokens      int           `yaml:"maxTokens,omitempty"`
	Temperature    *float64      `yaml:"temperature,omitempty"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"` // per-call timeout
}

// OrchestratorConfig bounds the context window and the retry policy.
type OrchestratorConfig struct {
	ContextWindowSize  int           `yaml:"contextWindowSize,omitempty"` // last K turns
	ContextCharBudget  int           `yaml:"contextCharBudget,omitempty"` // 0 disables
	RetryMaxAttempts   int           `yaml:"retryMaxAttempts,omitempty"`
	RetryBaseDelay     time.Duration `yaml:"retryBaseDelay,omitempty"`
	RetryBackoffFactor float64       `yaml:"retryBackoffFactor,omitempty"`
	OverallDeadline    time.Duration `yaml:"overallDeadline,omitempty"`
	DegradedReply      string        `yaml:"degradedReply,omitempty"` // override the canned fallback
}

// SessionConfig defines conversation scoping and storage.
type SessionConfig struct {
	Scope string `yaml:"scope,omitempty"` // "per-sender" | "global"
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// GatewayConfig controls the webhook HTTP server.
type GatewayConfig struct {
	Port           int           `yaml:"port,omitempty"`
	Bind           string        `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string        `yaml:"customBindHost,omitempty"`
	MonitorToken   string        `yaml:"monitorToken,omitempty"` // enables GET /ws when set
	DedupeTTL      time.Duration `yaml:"dedupeTtl,omitempty"`
	DedupeMaxSize  int           `yaml:"dedupeMaxSize,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
