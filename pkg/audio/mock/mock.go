// Package mock provides in-memory implementations of the [audio.Device],
// [audio.Source], [audio.Recording], and [audio.Player] interfaces for use in
// unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control behaviour.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Supported: []audio.Encoding{audio.OggOpus},
//	    Chunks:    [][]byte{[]byte("page-1")},
//	    Final:     []byte("page-2"),
//	}
//	dev := &mock.Device{Source: src}
package mock

import (
	"context"
	"sync"

	"github.com/sanduabey/zen/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Device    = (*Device)(nil)
	_ audio.Source    = (*Source)(nil)
	_ audio.Recording = (*Recording)(nil)
	_ audio.Player    = (*Player)(nil)
)

// ─── Device ──────────────────────────────────────────────────────────────────

// Device is a mock implementation of [audio.Device].
type Device struct {
	mu sync.Mutex

	// Source is returned by Acquire when AcquireErr is nil.
	Source *Source

	// AcquireErr is returned by Acquire when non-nil.
	AcquireErr error

	// AcquireCount records how many times Acquire was called.
	AcquireCount int
}

// Acquire implements [audio.Device].
func (d *Device) Acquire(ctx context.Context) (audio.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AcquireCount++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	if d.Source == nil {
		d.Source = &Source{Supported: []audio.Encoding{audio.OggOpus}}
	}
	return d.Source, nil
}

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Each Start creates a
// [Recording] that immediately delivers Chunks and delivers Final when
// stopped.
type Source struct {
	mu sync.Mutex

	// Supported lists the encodings Supports reports true for.
	Supported []audio.Encoding

	// StartErr is returned by Start when non-nil.
	StartErr error

	// Chunks are delivered as soon as a recording starts.
	Chunks [][]byte

	// Final is delivered when the recording is stopped, if non-empty.
	Final []byte

	// RecordingErr is reported by the recording's Err after it finishes.
	RecordingErr error

	// ManualFinalize makes Stop leave the chunk channel open until the test
	// calls [Recording.Finalize].
	ManualFinalize bool

	// ReleaseErr is returned by Release.
	ReleaseErr error

	// Started records the encoding of each Start call.
	Started []audio.Encoding

	// Recordings holds every recording created by Start, in order.
	Recordings []*Recording

	// ReleaseCount records how many times Release was called.
	ReleaseCount int
}

// Supports implements [audio.Source].
func (s *Source) Supports(enc audio.Encoding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Supported {
		if e == enc {
			return true
		}
	}
	return false
}

// Start implements [audio.Source].
func (s *Source) Start(enc audio.Encoding) (audio.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Started = append(s.Started, enc)
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	rec := &Recording{
		ch:     make(chan []byte, len(s.Chunks)+1),
		final:  s.Final,
		err:    s.RecordingErr,
		manual: s.ManualFinalize,
	}
	for _, c := range s.Chunks {
		rec.ch <- c
	}
	s.Recordings = append(s.Recordings, rec)
	return rec, nil
}

// Release implements [audio.Source].
func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReleaseCount++
	return s.ReleaseErr
}

// Released reports how many times Release was called.
func (s *Source) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReleaseCount
}

// ─── Recording ───────────────────────────────────────────────────────────────

// Recording is a mock implementation of [audio.Recording].
type Recording struct {
	mu sync.Mutex

	ch     chan []byte
	final  []byte
	err    error
	manual bool
	closed bool

	// StopCount records how many times Stop was called.
	StopCount int
}

// Chunks implements [audio.Recording].
func (r *Recording) Chunks() <-chan []byte { return r.ch }

// Stop implements [audio.Recording]. Unless the source was configured with
// ManualFinalize, the final chunk is delivered and the channel closed.
func (r *Recording) Stop() error {
	r.mu.Lock()
	r.StopCount++
	manual := r.manual
	r.mu.Unlock()
	if !manual {
		r.Finalize()
	}
	return nil
}

// Finalize delivers the final chunk and closes the channel. Safe to call
// more than once.
func (r *Recording) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if len(r.final) > 0 {
		r.ch <- r.final
	}
	close(r.ch)
}

// Err implements [audio.Recording].
func (r *Recording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stops returns how many times Stop was called.
func (r *Recording) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.StopCount
}

// ─── Player ──────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayErr is returned by Play when non-nil.
	PlayErr error

	// Block, when non-nil, makes Play wait until it is closed, ctx is done,
	// or Stop is called.
	Block chan struct{}

	// Played records every clip passed to Play, in order.
	Played [][]byte

	// StopCount records how many times Stop was called.
	StopCount int

	stop chan struct{}
}

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip []byte) error {
	p.mu.Lock()
	p.Played = append(p.Played, clip)
	err := p.PlayErr
	block := p.Block
	if p.stop == nil {
		p.stop = make(chan struct{})
	}
	stop := p.stop
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		case <-stop:
		}
	}
	return nil
}

// Stop implements [audio.Player].
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCount++
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

// Plays returns a copy of the clips played so far.
func (p *Player) Plays() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.Played))
	copy(out, p.Played)
	return out
}
