// Command zen-server is the voice-turn HTTP server: it transcribes an
// uploaded recording, asks a language model for a reply and returns the reply
// as text and speech.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sanduabey/zen/internal/config"
	"github.com/sanduabey/zen/internal/health"
	"github.com/sanduabey/zen/internal/observe"
	"github.com/sanduabey/zen/internal/server"
	"github.com/sanduabey/zen/internal/voiceturn"
	"github.com/sanduabey/zen/pkg/types"
)

const shutdownTimeout = 15 * time.Second

// logLevel backs the default logger so the level can change on reload.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	watch := flag.Bool("watch", true, "reload pipeline texts, voices and log level when the config file changes")
	flag.Parse()

	// ── Environment ───────────────────────────────────────────────────────────
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "zen-server: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "zen-server: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "zen-server: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("zen-server starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, telemetryConfig(cfg))
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(ctx, cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer ps.Close()

	orch, err := voiceturn.New(ps.STT, ps.LLM, ps.TTS,
		voiceturn.WithSettings(pipelineSettings(cfg)),
		voiceturn.WithMetrics(metrics),
		voiceturn.WithProviderNames(cfg.Providers.STT.Name, cfg.Providers.LLM.Name, cfg.Providers.TTS.Name),
	)
	if err != nil {
		slog.Error("failed to create orchestrator", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	var watcher *config.Watcher
	if *watch {
		w, err := config.NewWatcher(*configPath, func(c config.Change) {
			applyReload(orch, c)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
			watcher = w
			go reloadOnHangup(ctx, w)
		}
	}

	// ── Health ────────────────────────────────────────────────────────────────
	checkers := []health.Checker{
		health.BreakerChecker("breaker.stt", func() string { return ps.STT.Breaker().State().String() }),
		health.BreakerChecker("breaker.llm", func() string { return ps.LLM.Breaker().State().String() }),
		health.BreakerChecker("breaker.tts", func() string { return ps.TTS.Breaker().State().String() }),
	}
	if ps.Cache != nil {
		checkers = append(checkers, health.PingChecker("speech_cache", ps.Cache, false))
	}
	if watcher != nil {
		checkers = append(checkers, configChecker(watcher))
	}
	hh := health.New(checkers...)

	// ── HTTP servers ──────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithMetrics(metrics),
	}
	var opsSrv *http.Server
	if cfg.Server.MetricsAddr == "" {
		srvOpts = append(srvOpts, server.WithHealth(hh), server.WithMetricsHandler(promhttp.Handler()))
	} else {
		mux := http.NewServeMux()
		hh.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())
		opsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	apiSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(orch, srvOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiSrv, opsSrv} {
		if srv == nil {
			continue
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("server ready; press Ctrl+C to shut down")
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// pipelineSettings maps the pipeline and voices sections onto orchestrator
// settings.
func pipelineSettings(cfg *config.Config) voiceturn.Settings {
	voice := func(v config.VoiceConfig) types.VoiceProfile {
		return types.VoiceProfile{
			ID:          v.VoiceID,
			Name:        v.Name,
			Provider:    cfg.Providers.TTS.Name,
			SpeedFactor: v.SpeedFactor,
		}
	}
	p := cfg.Pipeline
	return voiceturn.Settings{
		SystemPrompt:          p.SystemPrompt,
		FailedTranscriptReply: p.FailedTranscriptReply,
		SilenceReply:          p.SilenceReply,
		ApologyReply:          p.ApologyReply,
		EmptyReply:            p.EmptyReply,
		MaxTokens:             p.MaxTokens,
		Temperature:           p.Temperature,
		ClarificationVoice:    voice(cfg.Voices.Clarification),
		ReplyVoice:            voice(cfg.Voices.Reply),
	}
}

// settingsUpdater is the part of the orchestrator a reload touches.
type settingsUpdater interface {
	UpdateSettings(voiceturn.Settings)
}

// applyReload applies the hot-reloadable parts of c and logs sections that
// need a restart.
func applyReload(o settingsUpdater, c config.Change) {
	d := c.Diff
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PipelineChanged || d.VoicesChanged {
		o.UpdateSettings(pipelineSettings(c.New))
		slog.Info("pipeline settings reloaded", "pipeline", d.PipelineChanged, "voices", d.VoicesChanged)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := w.Reload(); err != nil {
				slog.Warn("SIGHUP reload rejected", "err", err)
			}
		}
	}
}

// errorSource is the part of the config watcher readiness looks at.
type errorSource interface {
	Err() error
}

// configChecker reports a rejected config edit as a non-critical failure:
// the server keeps running on the previous config.
func configChecker(w errorSource) health.Checker {
	return health.Checker{
		Name: "config",
		Check: func(context.Context) error {
			if err := w.Err(); err != nil {
				return fmt.Errorf("config file rejected, running on previous config: %w", err)
			}
			return nil
		},
	}
}

// telemetryConfig describes this server to the telemetry backends.
func telemetryConfig(cfg *config.Config) observe.ProviderConfig {
	return observe.ProviderConfig{
		ServiceName: observe.DefaultServiceName,
		Pipeline: map[string]string{
			"stt": cfg.Providers.STT.Name,
			"llm": cfg.Providers.LLM.Name,
			"tts": cfg.Providers.TTS.Name,
		},
		TraceSampleRatio: cfg.Server.TraceSampleRatio,
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         zen — startup summary         ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Speech cache    : %-19s ║\n", cfg.Cache.Backend)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, truncate(value, 19))
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	logLevel.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
