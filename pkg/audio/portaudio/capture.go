// Package portaudio implements [audio.Device] and [audio.Player] on top of
// the PortAudio C library.
//
// Capture records 48 kHz mono PCM from the default input device and encodes
// it to Ogg Opus on the fly. Playback decodes MP3 and writes it to the
// default output device.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/audio/oggopus"
)

const (
	captureRate     = oggopus.SampleRate
	captureChannels = 1
	pollInterval    = 10 * time.Millisecond
	chunkBuffer     = 64
)

// Compile-time interface assertions.
var (
	_ audio.Device    = (*Device)(nil)
	_ audio.Source    = (*Source)(nil)
	_ audio.Recording = (*Recording)(nil)
)

// Device opens the system default microphone.
type Device struct{}

// NewDevice returns a Device for the default input.
func NewDevice() *Device { return &Device{} }

// Acquire initialises PortAudio and verifies that a default input device is
// present. The returned Source must be released.
func (d *Device) Acquire(ctx context.Context) (audio.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels < captureChannels {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: default input: %w", audio.ErrNoDevice)
	}
	slog.Debug("portaudio: acquired input device", "name", dev.Name)
	return &Source{device: dev}, nil
}

// Source is an acquired input device.
type Source struct {
	device *portaudio.DeviceInfo

	mu       sync.Mutex
	active   *Recording
	released bool
}

// Supports reports whether enc can be recorded. Only Ogg Opus is produced.
func (s *Source) Supports(enc audio.Encoding) bool {
	return enc == audio.OggOpus
}

// Start opens an input stream and begins encoding.
func (s *Source) Start(enc audio.Encoding) (audio.Recording, error) {
	if !s.Supports(enc) {
		return nil, fmt.Errorf("portaudio: %s: %w", enc, audio.ErrUnsupportedEncoding)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, errors.New("portaudio: source released")
	}
	if s.active != nil && !s.active.finished() {
		return nil, errors.New("portaudio: recording already active")
	}

	rec := &Recording{
		chunks: make(chan []byte, chunkBuffer),
		buffer: make([]int16, oggopus.FrameSize),
		done:   make(chan struct{}),
	}
	w, err := oggopus.NewWriter(chunkWriter(rec.chunks), captureChannels)
	if err != nil {
		return nil, fmt.Errorf("portaudio: start: %w", err)
	}
	rec.enc = w

	params := portaudio.LowLatencyParameters(s.device, nil)
	params.Input.Channels = captureChannels
	params.SampleRate = captureRate
	params.FramesPerBuffer = oggopus.FrameSize
	stream, err := portaudio.OpenStream(params, rec.buffer)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream: %w", classify(err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("portaudio: start input stream: %w", classify(err))
	}
	rec.stream = stream
	rec.running = true
	s.active = rec

	go rec.recordLoop()
	return rec, nil
}

// Release stops any active recording and terminates PortAudio.
func (s *Source) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	rec := s.active
	s.active = nil
	s.mu.Unlock()

	if rec != nil {
		_ = rec.Stop()
		<-rec.done
	}
	return portaudio.Terminate()
}

// classify maps PortAudio errors onto the audio package sentinels.
func classify(err error) error {
	var pe portaudio.Error
	if errors.As(err, &pe) {
		switch pe {
		case portaudio.DeviceUnavailable:
			return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
		case portaudio.InvalidDevice:
			return fmt.Errorf("%w: %v", audio.ErrNoDevice, err)
		}
	}
	return err
}

// chunkWriter forwards each write as a copied chunk.
type chunkWriter chan<- []byte

func (c chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b := make([]byte, len(p))
	copy(b, p)
	c <- b
	return len(p), nil
}

// Recording is an active capture. Chunks carry Ogg pages.
type Recording struct {
	chunks chan []byte
	buffer []int16
	done   chan struct{}

	mu      sync.Mutex
	stream  *portaudio.Stream
	enc     *oggopus.Writer
	running bool
	err     error
}

// Chunks returns the channel of encoded data.
func (r *Recording) Chunks() <-chan []byte { return r.chunks }

// Stop asks the capture loop to finish. The final page is emitted before
// Chunks closes.
func (r *Recording) Stop() error {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// Err returns the capture error once Chunks has closed.
func (r *Recording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recording) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Recording) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recording) recordLoop() {
	var loopErr error
	defer func() {
		stopErr := r.stream.Stop()
		closeErr := r.stream.Close()
		encErr := r.enc.Close()
		r.mu.Lock()
		r.err = errors.Join(loopErr, encErr)
		if r.err == nil && (stopErr != nil || closeErr != nil) {
			slog.Debug("portaudio: closing input stream", "stop_err", stopErr, "close_err", closeErr)
		}
		r.mu.Unlock()
		close(r.chunks)
		close(r.done)
	}()

	for r.isRunning() {
		available, err := r.stream.AvailableToRead()
		if err != nil || available < len(r.buffer) {
			time.Sleep(pollInterval)
			continue
		}
		if err := r.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				slog.Debug("portaudio: input overflowed")
				continue
			}
			loopErr = fmt.Errorf("portaudio: read: %w", classify(err))
			return
		}
		if err := r.enc.WritePCM(r.buffer); err != nil {
			loopErr = err
			return
		}
	}
}
