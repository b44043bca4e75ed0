// Package oggopus encodes 16-bit PCM into an Ogg Opus stream
// ("audio/ogg;codecs=opus"), the container every STT provider zen supports
// accepts.
//
// PCM is buffered into 20 ms frames, Opus-encoded with gopus, wrapped in RTP
// packets, and paged by pion's oggwriter. The identification and comment
// pages are held back until the first frame is encoded, so a stream with no
// audio writes nothing at all.
package oggopus

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"layeh.com/gopus"
)

const (
	// SampleRate is the only rate accepted by Writer. Opus in Ogg always
	// advertises 48 kHz.
	SampleRate = 48000

	frameDurationMs = 20

	// FrameSize is the number of samples per channel in one 20 ms frame.
	FrameSize = SampleRate * frameDurationMs / 1000 // 960

	maxPacketBytes = 4000
	opusPayloadTyp = 0x78
	defaultBitrate = 32000
)

// Writer encodes PCM into an Ogg Opus stream written to an io.Writer.
// It is not safe for concurrent use.
type Writer struct {
	enc      *gopus.Encoder
	ogg      *oggwriter.OggWriter
	out      *headerHold
	channels int
	pending  []int16
	seq      uint16
	ts       uint32
	ssrc     uint32
	closed   bool
}

// Option configures a Writer.
type Option func(*gopus.Encoder)

// WithBitrate sets the Opus target bitrate in bits per second.
func WithBitrate(bps int) Option {
	return func(e *gopus.Encoder) {
		e.SetBitrate(bps)
	}
}

// NewWriter returns a Writer for interleaved PCM with the given channel
// count (1 or 2). Nothing reaches w until the first frame is encoded.
func NewWriter(w io.Writer, channels int, opts ...Option) (*Writer, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("oggopus: unsupported channel count %d", channels)
	}
	enc, err := gopus.NewEncoder(SampleRate, channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("oggopus: create opus encoder: %w", err)
	}
	enc.SetBitrate(defaultBitrate)
	for _, o := range opts {
		o(enc)
	}
	out := &headerHold{dst: w}
	ogg, err := oggwriter.NewWith(out, SampleRate, uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("oggopus: create ogg writer: %w", err)
	}
	return &Writer{
		enc:      enc,
		ogg:      ogg,
		out:      out,
		channels: channels,
		ssrc:     rand.Uint32(),
	}, nil
}

// WritePCM appends interleaved samples, encoding every complete frame.
func (w *Writer) WritePCM(samples []int16) error {
	if w.closed {
		return errors.New("oggopus: write after close")
	}
	w.pending = append(w.pending, samples...)
	frame := FrameSize * w.channels
	for len(w.pending) >= frame {
		if err := w.encodeFrame(w.pending[:frame]); err != nil {
			return err
		}
		w.pending = w.pending[frame:]
	}
	return nil
}

// Close pads and encodes any partial frame, then finalizes the Ogg stream.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var encErr error
	if len(w.pending) > 0 {
		frame := make([]int16, FrameSize*w.channels)
		copy(frame, w.pending)
		encErr = w.encodeFrame(frame)
		w.pending = nil
	}
	return errors.Join(encErr, w.ogg.Close())
}

// Frames returns the number of Opus frames written so far.
func (w *Writer) Frames() int {
	return int(w.ts / FrameSize)
}

func (w *Writer) encodeFrame(pcm []int16) error {
	opus, err := w.enc.Encode(pcm, FrameSize, maxPacketBytes)
	if err != nil {
		return fmt.Errorf("oggopus: opus encode: %w", err)
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadTyp,
			SequenceNumber: w.seq,
			Timestamp:      w.ts,
			SSRC:           w.ssrc,
		},
		Payload: opus,
	}
	if err := w.out.flush(); err != nil {
		return fmt.Errorf("oggopus: write headers: %w", err)
	}
	if err := w.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("oggopus: write page: %w", err)
	}
	w.seq++
	w.ts += FrameSize
	return nil
}

// headerHold buffers writes until flush, then passes them straight through.
// Unflushed data is dropped.
type headerHold struct {
	dst     io.Writer
	held    []byte
	flushed bool
}

func (h *headerHold) Write(p []byte) (int, error) {
	if h.flushed {
		return h.dst.Write(p)
	}
	h.held = append(h.held, p...)
	return len(p), nil
}

func (h *headerHold) flush() error {
	if h.flushed {
		return nil
	}
	h.flushed = true
	held := h.held
	h.held = nil
	_, err := h.dst.Write(held)
	return err
}
