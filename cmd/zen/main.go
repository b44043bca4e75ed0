// Command zen is the terminal voice client. Press Enter to start recording,
// Enter again to send the utterance; the reply is printed and played.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sanduabey/zen/internal/client"
	"github.com/sanduabey/zen/internal/config"
	"github.com/sanduabey/zen/internal/session"
	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/audio/portaudio"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (optional)")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	serverURL := flag.String("server", "", "server base URL; overrides client.server_url")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "zen: load %s: %v\n", *envFile, err)
		return 1
	}

	cfg, err := loadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zen: %v\n", err)
		return 1
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	slog.SetDefault(newLogger(config.LogLevel(*logLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var player audio.Player
	if p, err := portaudio.NewPlayer(); err != nil {
		slog.Warn("playback unavailable; replies will be text only", "err", err)
	} else {
		defer p.Close()
		player = p
	}

	api := client.New(cfg.ServerURL, client.WithTimeout(cfg.RequestTimeout))
	sess, err := session.New(session.Config{
		Device:       portaudio.NewDevice(),
		Submitter:    api,
		Player:       player,
		HistoryLimit: cfg.HistoryLimit,
		OnChange:     statusPrinter(os.Stdout),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "zen: %v\n", err)
		return 1
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("session close error", "err", err)
		}
	}()

	fmt.Printf("zen client → %s (session %s)\n", cfg.ServerURL, api.SessionID())
	if err := runREPL(ctx, os.Stdin, os.Stdout, sess); err != nil {
		fmt.Fprintf(os.Stderr, "zen: %v\n", err)
		return 1
	}
	return 0
}

// loadClientConfig reads the client section of path. A missing file yields
// the defaults.
func loadClientConfig(path string) (config.ClientConfig, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		def := &config.Config{}
		config.ApplyDefaults(def)
		return def.Client, nil
	}
	if err != nil {
		return config.ClientConfig{}, err
	}
	return cfg.Client, nil
}

// statusPrinter prints status changes and newly appended turns.
func statusPrinter(out io.Writer) func(session.Snapshot) {
	var (
		mu         sync.Mutex
		lastStatus string
		seen       int
	)
	return func(s session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range s.Transcript[min(seen, len(s.Transcript)):] {
			seen++
			fmt.Fprintf(out, "%3d %-9s %s\n", seen, t.Speaker+":", t.Text)
		}
		if s.Status != lastStatus {
			lastStatus = s.Status
			fmt.Fprintf(out, "» %s\n", s.Status)
		}
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogInfo:
		lvl = slog.LevelInfo
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
