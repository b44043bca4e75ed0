// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., the OpenAI
// transcription API, Deepgram pre-recorded, Google Cloud Speech, or a local
// whisper.cpp server) and exposes a uniform interface: one encoded audio
// recording in, one [Transcript] out. zen records a complete utterance on the
// client before submitting it, so no streaming session is involved.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/sanduabey/zen/pkg/types"
)

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Each server request calls
// Transcribe at most once.
type Provider interface {
	// Transcribe converts an encoded audio recording into text. The audio's
	// MIMEType and Filename describe the container (webm, ogg, mp4, aac);
	// providers that need an explicit encoding derive it from those fields.
	//
	// An empty Transcript.Text with a nil error means the provider heard no
	// speech. Errors cover transport failures, authentication failures,
	// unsupported formats, and ctx cancellation.
	Transcribe(ctx context.Context, audio types.Audio) (Transcript, error)
}
