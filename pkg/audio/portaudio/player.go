package portaudio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"

	"github.com/sanduabey/zen/pkg/audio"
)

const (
	playbackRate     = 48000
	playbackChannels = 2
	playbackFrames   = 960
)

var _ audio.Player = (*Player)(nil)

// Player plays MP3 clips on the default output device. A new Play cancels
// any clip still playing.
type Player struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewPlayer initialises PortAudio for playback. Call Close when done.
func NewPlayer() (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Player{}, nil
}

// Close stops playback and terminates PortAudio.
func (p *Player) Close() error {
	p.Stop()
	return portaudio.Terminate()
}

// Stop interrupts in-flight playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Play decodes clip and blocks until it has played, ctx is done, or Stop is
// called. Interruption is not an error.
func (p *Player) Play(ctx context.Context, clip []byte) error {
	pcm, err := DecodeMP3(clip, playbackRate)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.gen == gen {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	buf := make([]int16, playbackFrames*playbackChannels)
	stream, err := portaudio.OpenDefaultStream(0, playbackChannels, playbackRate, playbackFrames, buf)
	if err != nil {
		return fmt.Errorf("%w: open output stream: %v", audio.ErrPlaybackFailed, err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start output stream: %v", audio.ErrPlaybackFailed, err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm); off += len(buf) {
		if ctx.Err() != nil {
			return nil
		}
		n := copy(buf, pcm[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				continue
			}
			return fmt.Errorf("%w: write: %v", audio.ErrPlaybackFailed, err)
		}
	}
	return nil
}

// DecodeMP3 decodes an MP3 clip to interleaved 16-bit stereo samples at
// dstRate.
func DecodeMP3(clip []byte, dstRate int) ([]int16, error) {
	if len(clip) == 0 {
		return nil, fmt.Errorf("%w: empty clip", audio.ErrPlaybackFailed)
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(clip))
	if err != nil {
		return nil, fmt.Errorf("%w: decode mp3: %v", audio.ErrPlaybackFailed, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: decode mp3: %v", audio.ErrPlaybackFailed, err)
	}
	raw = audio.ResampleStereo16(raw, dec.SampleRate(), dstRate)
	return audio.BytesToInt16s(raw), nil
}
