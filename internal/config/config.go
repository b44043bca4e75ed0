// Package config provides the configuration schema, loader, and provider registry
// for the zen voice-turn server and client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CacheBackend selects where synthesized speech is cached.
type CacheBackend string

const (
	// CacheNone disables the speech cache.
	CacheNone CacheBackend = "none"

	// CacheMemory keeps clips in an in-process LRU.
	CacheMemory CacheBackend = "memory"

	// CacheRedis stores clips in Redis.
	CacheRedis CacheBackend = "redis"
)

// IsValid reports whether b is a recognised cache backend.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheNone, CacheMemory, CacheRedis:
		return true
	}
	return false
}

// Config is the root configuration structure for zen.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Voices     VoicesConfig     `yaml:"voices"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Cache      CacheConfig      `yaml:"cache"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Client     ClientConfig     `yaml:"client"`
}

// ServerConfig holds network and logging settings for the voice-turn server.
type ServerConfig struct {
	// ListenAddr is the TCP address the API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the address serving /metrics, /healthz and /readyz.
	// Empty serves them on ListenAddr.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps the multipart request body. Defaults to 25 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// TraceSampleRatio is the fraction of voice turns whose traces are
	// sampled, between 0 and 1. Zero or unset samples every turn.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Timeout bounds a single provider call. Zero leaves transport defaults.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// VoicesConfig names the two voices used by the orchestrator.
type VoicesConfig struct {
	// Clarification speaks "please repeat" messages.
	Clarification VoiceConfig `yaml:"clarification"`

	// Reply speaks language-model replies and apologies.
	Reply VoiceConfig `yaml:"reply"`
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// PipelineConfig holds the fixed texts and generation limits of a voice turn.
// Empty texts fall back to built-in defaults.
type PipelineConfig struct {
	SystemPrompt          string  `yaml:"system_prompt"`
	FailedTranscriptReply string  `yaml:"failed_transcript_reply"`
	SilenceReply          string  `yaml:"silence_reply"`
	ApologyReply          string  `yaml:"apology_reply"`
	EmptyReply            string  `yaml:"empty_reply"`
	MaxTokens             int     `yaml:"max_tokens"`
	Temperature           float64 `yaml:"temperature"`
}

// CacheConfig configures the synthesized-speech cache.
type CacheConfig struct {
	// Backend is none, memory or redis. Defaults to memory.
	Backend CacheBackend `yaml:"backend"`

	// MaxEntries bounds the memory backend. Defaults to 256.
	MaxEntries int `yaml:"max_entries"`

	// TTL expires cached clips. Zero keeps them until evicted.
	TTL time.Duration `yaml:"ttl"`

	// Namespace separates clips of different deployments sharing one store.
	Namespace string `yaml:"namespace"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ResilienceConfig tunes the per-capability circuit breakers.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that opens a breaker.
	// Defaults to 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long a breaker stays open. Defaults to 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the number of trial calls allowed while half-open.
	// Defaults to 1.
	HalfOpenMax int `yaml:"half_open_max"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	// ServerURL is the base URL of the voice-turn server.
	ServerURL string `yaml:"server_url"`

	// HistoryLimit is the number of transcript entries sent with each turn.
	// Defaults to 8.
	HistoryLimit int `yaml:"history_limit"`

	// RequestTimeout bounds one submission. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Defaults.
const (
	DefaultListenAddr     = ":8080"
	DefaultMaxUploadBytes = 25 << 20
	DefaultCacheEntries   = 256
	DefaultMaxFailures    = 5
	DefaultResetTimeout   = 30 * time.Second
	DefaultServerURL      = "http://localhost:8080"
	DefaultHistoryLimit   = 8
)

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheMemory
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultCacheEntries
	}
	if cfg.Resilience.MaxFailures == 0 {
		cfg.Resilience.MaxFailures = DefaultMaxFailures
	}
	if cfg.Resilience.ResetTimeout == 0 {
		cfg.Resilience.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Resilience.HalfOpenMax == 0 {
		cfg.Resilience.HalfOpenMax = 1
	}
	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = DefaultServerURL
	}
	if cfg.Client.HistoryLimit == 0 {
		cfg.Client.HistoryLimit = DefaultHistoryLimit
	}
}
