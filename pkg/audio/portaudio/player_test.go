package portaudio

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"

	"github.com/sanduabey/zen/pkg/audio"
)

func TestDecodeMP3_Empty(t *testing.T) {
	_, err := DecodeMP3(nil, playbackRate)
	if !errors.Is(err, audio.ErrPlaybackFailed) {
		t.Fatalf("expected ErrPlaybackFailed, got %v", err)
	}
}

func TestDecodeMP3_Garbage(t *testing.T) {
	_, err := DecodeMP3([]byte("definitely not an mp3 clip"), playbackRate)
	if !errors.Is(err, audio.ErrPlaybackFailed) {
		t.Fatalf("expected ErrPlaybackFailed, got %v", err)
	}
}

func TestSource_SupportsOnlyOggOpus(t *testing.T) {
	s := &Source{}
	if !s.Supports(audio.OggOpus) {
		t.Error("expected Ogg Opus to be supported")
	}
	for _, enc := range []audio.Encoding{audio.WebMOpus, audio.WebM, audio.MP4, audio.AAC} {
		if s.Supports(enc) {
			t.Errorf("did not expect %s to be supported", enc)
		}
	}
	enc, ok := audio.SelectEncoding(s)
	if !ok || enc != audio.OggOpus {
		t.Errorf("SelectEncoding = %v, %v; want Ogg Opus", enc, ok)
	}
}

func TestSource_StartUnsupported(t *testing.T) {
	s := &Source{}
	_, err := s.Start(audio.WebM)
	if !errors.Is(err, audio.ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	if err := classify(portaudio.DeviceUnavailable); !errors.Is(err, audio.ErrPermissionDenied) {
		t.Errorf("DeviceUnavailable: got %v", err)
	}
	if err := classify(portaudio.InvalidDevice); !errors.Is(err, audio.ErrNoDevice) {
		t.Errorf("InvalidDevice: got %v", err)
	}
	other := errors.New("boom")
	if err := classify(other); err != other {
		t.Errorf("unrelated error should pass through, got %v", err)
	}
}

func TestChunkWriter_Copies(t *testing.T) {
	ch := make(chan []byte, 1)
	w := chunkWriter(ch)
	p := []byte("abc")
	if n, err := w.Write(p); n != 3 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	p[0] = 'X'
	if got := <-ch; string(got) != "abc" {
		t.Errorf("chunk aliased caller buffer: %q", got)
	}
}
