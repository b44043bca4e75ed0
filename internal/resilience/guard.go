package resilience

import (
	"context"

	"github.com/sanduabey/zen/pkg/provider/llm"
	"github.com/sanduabey/zen/pkg/provider/stt"
	"github.com/sanduabey/zen/pkg/provider/tts"
	"github.com/sanduabey/zen/pkg/types"
)

// Compile-time interface assertions.
var (
	_ stt.Provider = (*GuardedSTT)(nil)
	_ llm.Provider = (*GuardedLLM)(nil)
	_ tts.Provider = (*GuardedTTS)(nil)
)

// execute runs fn through cb and returns its result.
func execute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	err := cb.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// GuardedSTT puts a circuit breaker in front of an [stt.Provider].
type GuardedSTT struct {
	inner   stt.Provider
	breaker *CircuitBreaker
}

// NewGuardedSTT wraps p with breaker.
func NewGuardedSTT(p stt.Provider, breaker *CircuitBreaker) *GuardedSTT {
	return &GuardedSTT{inner: p, breaker: breaker}
}

// Transcribe implements [stt.Provider].
func (g *GuardedSTT) Transcribe(ctx context.Context, audio types.Audio) (stt.Transcript, error) {
	return execute(g.breaker, func() (stt.Transcript, error) {
		return g.inner.Transcribe(ctx, audio)
	})
}

// Breaker returns the wrapped breaker.
func (g *GuardedSTT) Breaker() *CircuitBreaker { return g.breaker }

// GuardedLLM puts a circuit breaker in front of an [llm.Provider].
type GuardedLLM struct {
	inner   llm.Provider
	breaker *CircuitBreaker
}

// NewGuardedLLM wraps p with breaker.
func NewGuardedLLM(p llm.Provider, breaker *CircuitBreaker) *GuardedLLM {
	return &GuardedLLM{inner: p, breaker: breaker}
}

// Complete implements [llm.Provider].
func (g *GuardedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return execute(g.breaker, func() (*llm.CompletionResponse, error) {
		return g.inner.Complete(ctx, req)
	})
}

// Capabilities implements [llm.Provider]. It bypasses the breaker.
func (g *GuardedLLM) Capabilities() llm.ModelCapabilities {
	return g.inner.Capabilities()
}

// Breaker returns the wrapped breaker.
func (g *GuardedLLM) Breaker() *CircuitBreaker { return g.breaker }

// GuardedTTS puts a circuit breaker in front of a [tts.Provider].
type GuardedTTS struct {
	inner   tts.Provider
	breaker *CircuitBreaker
}

// NewGuardedTTS wraps p with breaker.
func NewGuardedTTS(p tts.Provider, breaker *CircuitBreaker) *GuardedTTS {
	return &GuardedTTS{inner: p, breaker: breaker}
}

// Synthesize implements [tts.Provider].
func (g *GuardedTTS) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	return execute(g.breaker, func() ([]byte, error) {
		return g.inner.Synthesize(ctx, text, voice)
	})
}

// ListVoices implements [tts.Provider]. It bypasses the breaker so a voice
// listing never trips or is blocked by synthesis health.
func (g *GuardedTTS) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return g.inner.ListVoices(ctx)
}

// Breaker returns the wrapped breaker.
func (g *GuardedTTS) Breaker() *CircuitBreaker { return g.breaker }
