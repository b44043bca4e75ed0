// Package voiceturn implements the server side of one voice turn: transcribe
// the uploaded recording, ask the language model for a reply, and synthesize
// that reply into speech.
//
// Capability failures never abort a turn. A failed or empty transcription
// skips the language model and produces a spoken clarification; a failed
// completion produces an apology; a failed synthesis produces a text-only
// result. Each capability is called at most once per turn and nothing is
// retried.
package voiceturn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sanduabey/zen/internal/observe"
	"github.com/sanduabey/zen/pkg/provider/llm"
	"github.com/sanduabey/zen/pkg/provider/stt"
	"github.com/sanduabey/zen/pkg/provider/tts"
	"github.com/sanduabey/zen/pkg/types"
)

// TranscriptionFailedSentinel replaces the transcript when the STT provider
// returns an error. It is returned to the client verbatim.
const TranscriptionFailedSentinel = "[Transcription failed]"

// Default texts used when [Settings] leaves a field empty.
const (
	DefaultSystemPrompt          = "You are a helpful, concise voice assistant. Keep replies short and conversational; they will be spoken aloud."
	DefaultFailedTranscriptReply = "I'm sorry, I couldn't understand the audio. Could you please try again?"
	DefaultSilenceReply          = "I didn't catch that. Could you please speak again?"
	DefaultApologyReply          = "I'm sorry, I'm having trouble thinking right now. Please try again in a moment."
	DefaultEmptyReply            = "I'm sorry, I couldn't generate a response."
)

var (
	// ErrBadRequest is returned when the request carries no audio payload.
	ErrBadRequest = errors.New("voiceturn: no audio payload")

	// ErrInvalidHistory is returned when a history entry has an unknown role.
	ErrInvalidHistory = errors.New("voiceturn: invalid history")
)

// Request is one voice turn submitted by a client.
type Request struct {
	// Audio is the recorded utterance.
	Audio types.Audio

	// History is the prior conversation, oldest first.
	History []types.Message
}

// Result is the outcome of a voice turn. It is never partial: Transcript and
// ReplyText are always set, ReplyAudio only when synthesis of ReplyText
// succeeded.
type Result struct {
	Transcript string
	ReplyText  string
	ReplyAudio []byte

	// Outcome is one of the observe.Outcome* values.
	Outcome string
}

// Settings holds the hot-swappable texts, generation limits and voices of the
// pipeline.
type Settings struct {
	SystemPrompt          string
	FailedTranscriptReply string
	SilenceReply          string
	ApologyReply          string
	EmptyReply            string
	MaxTokens             int
	Temperature           float64

	// ClarificationVoice speaks the failed-transcript and silence replies.
	ClarificationVoice types.VoiceProfile

	// ReplyVoice speaks model replies and apologies.
	ReplyVoice types.VoiceProfile
}

// withDefaults returns s with empty texts replaced by the package defaults.
func (s Settings) withDefaults() Settings {
	if s.SystemPrompt == "" {
		s.SystemPrompt = DefaultSystemPrompt
	}
	if s.FailedTranscriptReply == "" {
		s.FailedTranscriptReply = DefaultFailedTranscriptReply
	}
	if s.SilenceReply == "" {
		s.SilenceReply = DefaultSilenceReply
	}
	if s.ApologyReply == "" {
		s.ApologyReply = DefaultApologyReply
	}
	if s.EmptyReply == "" {
		s.EmptyReply = DefaultEmptyReply
	}
	return s
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithSettings sets the initial pipeline settings.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		s = s.withDefaults()
		o.settings.Store(&s)
	}
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProviderNames sets the provider labels used on spans and metrics.
func WithProviderNames(sttName, llmName, ttsName string) Option {
	return func(o *Orchestrator) {
		o.sttName, o.llmName, o.ttsName = sttName, llmName, ttsName
	}
}

// Orchestrator runs voice turns against injected providers. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	stt stt.Provider
	llm llm.Provider
	tts tts.Provider

	sttName string
	llmName string
	ttsName string

	settings atomic.Pointer[Settings]
	metrics  *observe.Metrics
	now      func() time.Time
}

// New creates an Orchestrator. All three providers are required.
func New(s stt.Provider, l llm.Provider, t tts.Provider, opts ...Option) (*Orchestrator, error) {
	if s == nil || l == nil || t == nil {
		return nil, errors.New("voiceturn: stt, llm and tts providers are required")
	}
	o := &Orchestrator{
		stt:     s,
		llm:     l,
		tts:     t,
		sttName: "stt",
		llmName: "llm",
		ttsName: "tts",
		now:     time.Now,
	}
	defaults := Settings{}.withDefaults()
	o.settings.Store(&defaults)
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// Settings returns the active settings.
func (o *Orchestrator) Settings() Settings {
	return *o.settings.Load()
}

// UpdateSettings atomically replaces the settings. Turns already in flight
// finish with the settings they started with.
func (o *Orchestrator) UpdateSettings(s Settings) {
	s = s.withDefaults()
	o.settings.Store(&s)
}

// ListVoices returns the voices offered by the TTS provider.
func (o *Orchestrator) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	voices, err := o.tts.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("voiceturn: list voices: %w", err)
	}
	return voices, nil
}

// HandleVoiceTurn runs one turn. It returns [ErrBadRequest] when req carries
// no audio and an error wrapping [ErrInvalidHistory] when a history entry has
// an unknown role. Provider failures are absorbed into the result.
func (o *Orchestrator) HandleVoiceTurn(ctx context.Context, req Request) (*Result, error) {
	start := o.now()
	o.metrics.InFlightTurns.Add(ctx, 1)
	defer o.metrics.InFlightTurns.Add(ctx, -1)

	res, err := o.handle(ctx, req)
	outcome := observe.OutcomeInternalError
	switch {
	case errors.Is(err, ErrBadRequest):
		outcome = observe.OutcomeBadRequest
	case err == nil:
		outcome = res.Outcome
	}
	o.metrics.RecordVoiceTurn(ctx, outcome, o.now().Sub(start))
	return res, err
}

func (o *Orchestrator) handle(ctx context.Context, req Request) (*Result, error) {
	if req.Audio.Empty() {
		return nil, ErrBadRequest
	}
	for i, m := range req.History {
		if !m.Role.IsValid() {
			return nil, fmt.Errorf("%w: entry %d has role %q", ErrInvalidHistory, i, m.Role)
		}
	}

	settings := *o.settings.Load()
	log := observe.Logger(ctx)

	transcript := o.transcribe(ctx, req.Audio)
	text := strings.TrimSpace(transcript)

	if text == "" || transcript == TranscriptionFailedSentinel {
		reply, outcome := settings.SilenceReply, observe.OutcomeClarified
		if transcript == TranscriptionFailedSentinel {
			reply, outcome = settings.FailedTranscriptReply, observe.OutcomeTranscribeFailed
		}
		log.Info("voiceturn: no usable transcript, asking for clarification", "outcome", outcome)
		return &Result{
			Transcript: transcript,
			ReplyText:  reply,
			ReplyAudio: o.synthesize(ctx, reply, settings.ClarificationVoice),
			Outcome:    outcome,
		}, nil
	}

	reply, outcome := o.complete(ctx, settings, req.History, text)
	res := &Result{Transcript: text, ReplyText: reply, Outcome: outcome}
	if reply == "" {
		return res, nil
	}
	res.ReplyAudio = o.synthesize(ctx, reply, settings.ReplyVoice)
	if res.ReplyAudio == nil && outcome == observe.OutcomeReplied {
		res.Outcome = observe.OutcomeRepliedTextOnly
	}
	return res, nil
}

// transcribe returns the transcript text, or [TranscriptionFailedSentinel]
// when the provider fails.
func (o *Orchestrator) transcribe(ctx context.Context, audio types.Audio) string {
	ctx, end := observe.StageSpan(ctx, "stt", o.sttName)
	start := o.now()
	tr, err := o.stt.Transcribe(ctx, audio)
	o.metrics.RecordProviderCall(ctx, o.sttName, "stt", o.now().Sub(start), err)
	end(err)
	if err != nil {
		observe.Logger(ctx).Warn("voiceturn: transcription failed", "provider", o.sttName, "err", err)
		return TranscriptionFailedSentinel
	}
	return tr.Text
}

// complete asks the language model for a reply to userText. It returns the
// apology on failure and the empty-reply text when the model returns nothing.
func (o *Orchestrator) complete(ctx context.Context, s Settings, history []types.Message, userText string) (string, string) {
	msgs := make([]types.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, types.Message{Role: types.RoleUser, Content: userText})

	ctx, end := observe.StageSpan(ctx, "llm", o.llmName)
	start := o.now()
	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: s.SystemPrompt,
		Messages:     msgs,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
	})
	o.metrics.RecordProviderCall(ctx, o.llmName, "llm", o.now().Sub(start), err)
	end(err)
	if err != nil {
		observe.Logger(ctx).Warn("voiceturn: completion failed", "provider", o.llmName, "err", err)
		return s.ApologyReply, observe.OutcomeApologised
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return s.EmptyReply, observe.OutcomeEmptyReply
	}
	return strings.TrimSpace(resp.Content), observe.OutcomeReplied
}

// synthesize returns the MP3 clip for text, or nil when synthesis fails or
// yields no bytes.
func (o *Orchestrator) synthesize(ctx context.Context, text string, voice types.VoiceProfile) []byte {
	ctx, end := observe.StageSpan(ctx, "tts", o.ttsName)
	start := o.now()
	clip, err := o.tts.Synthesize(ctx, text, voice)
	if err == nil && len(clip) == 0 {
		err = errors.New("voiceturn: synthesis returned no audio")
	}
	o.metrics.RecordProviderCall(ctx, o.ttsName, "tts", o.now().Sub(start), err)
	end(err)
	if err != nil {
		observe.Logger(ctx).Warn("voiceturn: synthesis failed, replying with text only", "provider", o.ttsName, "err", err)
		return nil
	}
	return clip
}
