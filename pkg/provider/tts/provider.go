// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI speech,
// ElevenLabs) and presents a uniform batch interface: one reply text in, one
// complete MP3 clip out. The clip is delivered to the client inline in the
// voice-turn response, so no streaming is required.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/sanduabey/zen/pkg/types"
)

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Each server request calls
// Synthesize at most once.
type Provider interface {
	// Synthesize renders text in the given voice and returns the encoded MP3
	// bytes. An empty result with a nil error is treated by callers as a
	// synthesis failure.
	//
	// Returns an error if the provider cannot be reached, rejects the voice, or
	// if ctx is cancelled before synthesis completes.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider. The list
	// reflects the provider's current catalogue and may change between calls.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
