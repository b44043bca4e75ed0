package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sanduabey/zen/internal/config"
	"github.com/sanduabey/zen/internal/observe"
	"github.com/sanduabey/zen/internal/resilience"
	"github.com/sanduabey/zen/pkg/provider/llm"
	"github.com/sanduabey/zen/pkg/provider/llm/anyllm"
	oallm "github.com/sanduabey/zen/pkg/provider/llm/openai"
	"github.com/sanduabey/zen/pkg/provider/stt"
	"github.com/sanduabey/zen/pkg/provider/stt/deepgram"
	"github.com/sanduabey/zen/pkg/provider/stt/google"
	oastt "github.com/sanduabey/zen/pkg/provider/stt/openai"
	"github.com/sanduabey/zen/pkg/provider/stt/whisper"
	"github.com/sanduabey/zen/pkg/provider/tts"
	"github.com/sanduabey/zen/pkg/provider/tts/cache"
	"github.com/sanduabey/zen/pkg/provider/tts/elevenlabs"
	oatts "github.com/sanduabey/zen/pkg/provider/tts/openai"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oallm.WithTimeout(entry.Timeout))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile and
	// ollama go through any-llm. Ollama is local and only needs BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			opts := []anyllmlib.Option{anyllmlib.WithHTTPClient(anyllm.NewHTTPClient(entry.Timeout))}
			if entry.APIKey != "" && providerName != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oastt.WithTimeout(entry.Timeout))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, deepgram.WithHTTPClient(&http.Client{Timeout: entry.Timeout}))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if entry.Timeout > 0 {
			opts = append(opts, whisper.WithHTTPClient(&http.Client{Timeout: entry.Timeout}))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("google", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []google.Option
		if entry.Model != "" {
			opts = append(opts, google.WithModel(entry.Model))
		}
		if entry.APIKey != "" {
			opts = append(opts, google.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, google.WithEndpoint(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, google.WithLanguage(lang))
		}
		if path := config.OptString(entry.Options, "credentials_file"); path != "" {
			opts = append(opts, google.WithCredentialsFile(path))
		}
		if hz := config.OptInt(entry.Options, "sample_rate"); hz > 0 {
			opts = append(opts, google.WithSampleRate(hz))
		}
		return google.New(context.Background(), opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oatts.WithTimeout(entry.Timeout))
		}
		return oatts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := config.OptString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.Timeout > 0 {
			opts = append(opts, elevenlabs.WithHTTPClient(&http.Client{Timeout: entry.Timeout}))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{"stt", "llm", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// providers holds the guarded providers handed to the orchestrator, plus the
// handles needed for readiness checks and shutdown.
type providers struct {
	STT *resilience.GuardedSTT
	LLM *resilience.GuardedLLM
	TTS *resilience.GuardedTTS

	// Cache is the speech cache wrapping the raw TTS provider, nil when
	// disabled.
	Cache *cache.Provider

	closers []func() error
}

// Close releases provider resources.
func (p *providers) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			slog.Warn("provider close error", "err", err)
		}
	}
}

// buildProviders instantiates the providers named in cfg, wraps TTS in the
// speech cache, and guards each with its own circuit breaker.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*providers, error) {
	ps := &providers{}

	sttP, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	if c, ok := sttP.(interface{ Close() error }); ok {
		ps.closers = append(ps.closers, c.Close)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	llmP, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	ttsP, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if store, err := newCacheStore(ctx, cfg.Cache); err != nil {
		ps.Close()
		return nil, err
	} else if store != nil {
		cp, err := cache.New(ttsP, store,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithNamespace(cfg.Cache.Namespace),
			cache.WithLookupHook(m.RecordCacheLookup),
		)
		if err != nil {
			_ = store.Close()
			ps.Close()
			return nil, fmt.Errorf("create speech cache: %w", err)
		}
		ps.Cache = cp
		ps.closers = append(ps.closers, cp.Close)
		ttsP = cp
		slog.Info("speech cache enabled", "backend", cfg.Cache.Backend)
	}

	ps.STT = resilience.NewGuardedSTT(sttP, newBreaker("stt", cfg.Resilience, m))
	ps.LLM = resilience.NewGuardedLLM(llmP, newBreaker("llm", cfg.Resilience, m))
	ps.TTS = resilience.NewGuardedTTS(ttsP, newBreaker("tts", cfg.Resilience, m))
	return ps, nil
}

// newCacheStore opens the configured speech cache backend. It returns a nil
// store when caching is disabled.
func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMemoryStore(cfg.MaxEntries), nil
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect speech cache: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func newBreaker(name string, cfg config.ResilienceConfig, m *observe.Metrics) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		HalfOpenMax:  cfg.HalfOpenMax,
		OnStateChange: func(name string, _, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})
}
