package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sanduabey/zen/internal/config"
	"github.com/sanduabey/zen/internal/voiceturn"
)

type recordingUpdater struct {
	calls []voiceturn.Settings
}

func (r *recordingUpdater) UpdateSettings(s voiceturn.Settings) {
	r.calls = append(r.calls, s)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Providers.TTS.Name = "openai"
	cfg.Voices.Clarification = config.VoiceConfig{VoiceID: "nova", SpeedFactor: 1.1}
	cfg.Voices.Reply = config.VoiceConfig{VoiceID: "alloy"}
	cfg.Pipeline.SystemPrompt = "Be brief."
	cfg.Pipeline.MaxTokens = 100
	config.ApplyDefaults(cfg)
	return cfg
}

func TestPipelineSettings(t *testing.T) {
	s := pipelineSettings(testConfig())
	if s.SystemPrompt != "Be brief." || s.MaxTokens != 100 {
		t.Errorf("settings = %+v", s)
	}
	if s.ClarificationVoice.ID != "nova" || s.ClarificationVoice.SpeedFactor != 1.1 || s.ClarificationVoice.Provider != "openai" {
		t.Errorf("clarification voice = %+v", s.ClarificationVoice)
	}
	if s.ReplyVoice.ID != "alloy" {
		t.Errorf("reply voice = %+v", s.ReplyVoice)
	}
}

func TestApplyReload(t *testing.T) {
	old := testConfig()
	cur := testConfig()
	cur.Pipeline.ApologyReply = "Oops."
	cur.Server.LogLevel = config.LogDebug
	cur.Cache.Backend = config.CacheNone

	u := &recordingUpdater{}
	applyReload(u, config.Change{Old: old, New: cur, Diff: config.Diff(old, cur)})
	t.Cleanup(func() { logLevel.Set(slog.LevelInfo) })

	if len(u.calls) != 1 || u.calls[0].ApologyReply != "Oops." {
		t.Errorf("UpdateSettings calls = %+v", u.calls)
	}
	if logLevel.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", logLevel.Level())
	}

	restartOnly := testConfig()
	restartOnly.Cache.Backend = config.CacheNone
	u2 := &recordingUpdater{}
	applyReload(u2, config.Change{Old: old, New: restartOnly, Diff: config.Diff(old, restartOnly)})
	if len(u2.calls) != 0 {
		t.Error("restart-only change must not update settings")
	}
}

type stubErr struct{ err error }

func (s stubErr) Err() error { return s.err }

func TestConfigChecker(t *testing.T) {
	c := configChecker(stubErr{})
	if c.Critical {
		t.Error("a rejected config edit must not make the server unready")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
	bad := configChecker(stubErr{err: errors.New("server.log_level invalid")})
	if err := bad.Check(context.Background()); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("Check() = %v", err)
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.STT.Name = "deepgram"
	cfg.Providers.LLM.Name = "anthropic"
	cfg.Server.TraceSampleRatio = 0.2

	tc := telemetryConfig(cfg)
	if tc.Pipeline["stt"] != "deepgram" || tc.Pipeline["llm"] != "anthropic" || tc.Pipeline["tts"] != "openai" {
		t.Errorf("pipeline = %v", tc.Pipeline)
	}
	if tc.TraceSampleRatio != 0.2 {
		t.Errorf("sample ratio = %v", tc.TraceSampleRatio)
	}
}

func TestNewCacheStore(t *testing.T) {
	store, err := newCacheStore(context.Background(), config.CacheConfig{Backend: config.CacheNone})
	if err != nil || store != nil {
		t.Errorf("none backend = %v, %v", store, err)
	}
	store, err = newCacheStore(context.Background(), config.CacheConfig{Backend: config.CacheMemory, MaxEntries: 4})
	if err != nil || store == nil {
		t.Fatalf("memory backend = %v, %v", store, err)
	}
	_ = store.Close()
}

func TestRegisterBuiltinProviders(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	for kind, names := range config.ValidProviderNames {
		got := map[string]bool{}
		for _, n := range reg.Names(kind) {
			got[n] = true
		}
		for _, n := range names {
			if !got[n] {
				t.Errorf("%s provider %q is listed as valid but not registered", kind, n)
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"openai / gpt-4o", "openai / gpt-4o"},
		{"anthropic / claude-3-5-haiku-latest", "anthropic / clau..."},
		{"elevenlabs / modèle-éééééééé", "elevenlabs / mod..."},
		{"ééééééééééééééééééééé", "éééééééééééééééé..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, 19)
		if got != tt.want {
			t.Errorf("truncate(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q) produced invalid UTF-8", tt.in)
		}
	}
}
