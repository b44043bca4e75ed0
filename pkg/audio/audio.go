// Package audio defines the capture and playback abstractions used by the zen
// client, together with the encoding preference list shared with the server.
//
// The primary abstractions are:
//
//   - [Device]: grants access to a microphone and returns a [Source].
//   - [Source]: a held capture device that can start one [Recording] in a
//     supported [Encoding].
//   - [Recording]: an in-progress capture delivering encoded chunks.
//   - [Player]: plays an MP3 clip to the default output.
//
// Platform-specific implementations live in sub-packages (audio/portaudio);
// test doubles live in audio/mock.
package audio

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Capture and playback failures. Implementations wrap these so callers can
// classify errors with errors.Is.
var (
	// ErrPermissionDenied means the OS or user refused microphone access.
	ErrPermissionDenied = errors.New("audio: permission denied")

	// ErrNoDevice means no capture device is present.
	ErrNoDevice = errors.New("audio: no capture device")

	// ErrUnsupportedEncoding means the device supports none of the preferred
	// encodings.
	ErrUnsupportedEncoding = errors.New("audio: no supported encoding")

	// ErrPlaybackFailed means a clip could not be played (no output device,
	// output busy, undecodable clip).
	ErrPlaybackFailed = errors.New("audio: playback failed")
)

// Encoding is a capture container/codec combination.
type Encoding struct {
	// MIMEType is the full content type, including codec parameters.
	MIMEType string

	// Ext is the filename extension matching the container, with leading dot.
	Ext string
}

// String returns the MIME type.
func (e Encoding) String() string { return e.MIMEType }

// Extension returns the filename extension, including the leading dot.
func (e Encoding) Extension() string { return e.Ext }

// BaseMIMEType returns the MIME type without parameters.
func (e Encoding) BaseMIMEType() string {
	base, _, _ := strings.Cut(e.MIMEType, ";")
	return strings.TrimSpace(base)
}

// Well-known capture encodings.
var (
	WebMOpus = Encoding{MIMEType: "audio/webm;codecs=opus", Ext: ".webm"}
	WebM     = Encoding{MIMEType: "audio/webm", Ext: ".webm"}
	OggOpus  = Encoding{MIMEType: "audio/ogg;codecs=opus", Ext: ".ogg"}
	MP4      = Encoding{MIMEType: "audio/mp4", Ext: ".mp4"}
	AAC      = Encoding{MIMEType: "audio/aac", Ext: ".aac"}
)

// Preferred is the capture encoding preference order. The first encoding a
// [Source] supports wins.
var Preferred = []Encoding{WebMOpus, WebM, OggOpus, MP4, AAC}

// SelectEncoding returns the first entry of [Preferred] that src supports.
func SelectEncoding(src Source) (Encoding, bool) {
	for _, enc := range Preferred {
		if src.Supports(enc) {
			return enc, true
		}
	}
	return Encoding{}, false
}

// EncodingForMIME maps a (possibly parameterised) MIME type to the preferred
// encoding with the same container. Matching ignores case and parameters.
func EncodingForMIME(mime string) (Encoding, bool) {
	base, _, _ := strings.Cut(mime, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		return Encoding{}, false
	}
	for _, enc := range Preferred {
		if enc.BaseMIMEType() == base {
			return enc, true
		}
	}
	return Encoding{}, false
}

// EncodingForFilename maps a filename extension (".webm", ".ogg", ...) to
// the preferred encoding using that extension.
func EncodingForFilename(name string) (Encoding, bool) {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return Encoding{}, false
	}
	for _, enc := range Preferred {
		if enc.Ext == ext {
			return enc, true
		}
	}
	return Encoding{}, false
}

// Device grants access to a capture device.
type Device interface {
	// Acquire opens the default capture device. It returns an error wrapping
	// [ErrPermissionDenied] or [ErrNoDevice] when capture is impossible.
	Acquire(ctx context.Context) (Source, error)
}

// Source is a held capture device. It must be released exactly once on every
// exit path; Release is idempotent.
type Source interface {
	// Supports reports whether the source can record in enc.
	Supports(enc Encoding) bool

	// Start begins a recording in enc. Only one recording may be active.
	Start(enc Encoding) (Recording, error)

	// Release frees the underlying device. Safe to call more than once.
	Release() error
}

// Recording is an in-progress capture.
type Recording interface {
	// Chunks delivers encoded data as it is produced. The channel is closed
	// once finalization completes after Stop, or when capture fails.
	Chunks() <-chan []byte

	// Stop asks the capture to finalize. Finalization is asynchronous;
	// callers observe completion through the closing of Chunks.
	Stop() error

	// Err returns the capture error, if any, once Chunks is closed.
	Err() error
}

// Player plays encoded reply clips.
type Player interface {
	// Play decodes and plays an MP3 clip, blocking until playback finishes,
	// ctx is cancelled, or Stop is called. Failures wrap [ErrPlaybackFailed].
	Play(ctx context.Context, mp3 []byte) error

	// Stop interrupts any in-flight playback.
	Stop()
}
