// Package server exposes the voice-turn orchestrator over HTTP.
//
// Routes:
//
//	POST /api/voice-turn  multipart "audio" file + "history" JSON field
//	GET  /api/voices      voices offered by the configured TTS provider
//
// The only non-2xx responses are 400 for a missing audio part and 500 for
// malformed payloads, invalid history, and panics. Provider failures are
// absorbed by the orchestrator and still answer 200.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/sanduabey/zen/internal/config"
	"github.com/sanduabey/zen/internal/health"
	"github.com/sanduabey/zen/internal/observe"
	"github.com/sanduabey/zen/internal/voiceturn"
	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/types"
)

// Orchestrator is the subset of [voiceturn.Orchestrator] the HTTP layer uses.
type Orchestrator interface {
	HandleVoiceTurn(ctx context.Context, req voiceturn.Request) (*voiceturn.Result, error)
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}

// Server routes HTTP requests to an [Orchestrator].
type Server struct {
	turns          Orchestrator
	maxUploadBytes int64
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxUploadBytes caps the voice-turn request body.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMetrics overrides the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// New creates a Server for turns.
func New(turns Orchestrator, opts ...Option) *Server {
	s := &Server{
		turns:          turns,
		maxUploadBytes: config.DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the root handler with panic recovery and request
// observability applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/voice-turn", s.handleVoiceTurn)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(recoverer(mux))
}

// voiceTurnResponse is the JSON body of a successful voice turn.
type voiceTurnResponse struct {
	UserTranscript  string  `json:"userTranscript"`
	LLMTextResponse string  `json:"llmTextResponse"`
	AudioBase64     *string `json:"audioBase64"`
}

// errorResponse is the JSON body of a 4xx/5xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const (
	msgNoAudio       = "No audio file provided"
	msgInternalError = "Failed to process voice turn"
)

// handleVoiceTurn handles POST /api/voice-turn.
func (s *Server) handleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.internalError(ctx, w, fmt.Errorf("server: parse multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := readRequest(r)
	switch {
	case errors.Is(err, voiceturn.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoAudio})
		return
	case err != nil:
		s.internalError(ctx, w, err)
		return
	}

	res, err := s.turns.HandleVoiceTurn(ctx, req)
	switch {
	case errors.Is(err, voiceturn.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoAudio})
		return
	case err != nil:
		s.internalError(ctx, w, err)
		return
	}

	resp := voiceTurnResponse{
		UserTranscript:  res.Transcript,
		LLMTextResponse: res.ReplyText,
	}
	if len(res.ReplyAudio) > 0 {
		enc := base64.StdEncoding.EncodeToString(res.ReplyAudio)
		resp.AudioBase64 = &enc
	}
	log.Debug("voice turn answered", "outcome", res.Outcome, "audio", resp.AudioBase64 != nil)
	writeJSON(w, http.StatusOK, resp)
}

// readRequest extracts the audio part and history field from a parsed
// multipart form. A missing or empty audio part yields
// [voiceturn.ErrBadRequest] before the history is looked at.
func readRequest(r *http.Request) (voiceturn.Request, error) {
	var req voiceturn.Request

	file, hdr, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return req, voiceturn.ErrBadRequest
	}
	if err != nil {
		return req, fmt.Errorf("server: open audio part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("server: read audio part: %w", err)
	}
	if len(data) == 0 {
		return req, voiceturn.ErrBadRequest
	}

	mime := hdr.Header.Get("Content-Type")
	if _, ok := audio.EncodingForMIME(mime); !ok {
		if enc, ok := audio.EncodingForFilename(hdr.Filename); ok {
			mime = enc.MIMEType
		}
	}
	req.Audio = types.Audio{Data: data, MIMEType: mime, Filename: hdr.Filename}

	if raw := r.FormValue("history"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.History); err != nil {
			return req, fmt.Errorf("server: decode history: %w", err)
		}
	}
	return req, nil
}

// handleVoices handles GET /api/voices.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.turns.ListVoices(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Warn("list voices failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to list voices", Details: err.Error()})
		return
	}
	if voices == nil {
		voices = []types.VoiceProfile{}
	}
	writeJSON(w, http.StatusOK, voices)
}

// internalError logs err and answers with the opaque 500 body.
func (s *Server) internalError(ctx context.Context, w http.ResponseWriter, err error) {
	observe.Logger(ctx).Error("voice turn failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   msgInternalError,
		Details: err.Error(),
	})
}

// recoverer turns a panic in next into an opaque 500 so one bad request
// cannot take the server down.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			observe.Logger(r.Context()).Error("panic while handling request",
				"panic", rec,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   msgInternalError,
				Details: "internal server error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encode response", "err", err)
	}
}
