// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed a canned Transcript (or error) to the orchestrator and to
// verify which audio payloads were submitted for transcription.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "What's the weather?"}}
//	tr, _ := p.Transcribe(ctx, audio)
package mock

import (
	"context"
	"sync"

	"github.com/sanduabey/zen/pkg/provider/stt"
	"github.com/sanduabey/zen/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is a copy of the audio payload passed to Transcribe.
	Audio types.Audio
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Panic, if non-empty, makes Transcribe panic with this message. Used to
	// exercise the HTTP layer's recovery path.
	Panic string

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, audio types.Audio) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := audio
	cp.Data = append([]byte(nil), audio.Data...)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Audio: cp})
	if p.Panic != "" {
		panic(p.Panic)
	}
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
