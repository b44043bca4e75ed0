package oggopus

import (
	"bytes"
	"math"
	"testing"
)

func sine(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return out
}

func TestWriter_ProducesOggStream(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected headers to be held until the first frame, got %d bytes", buf.Len())
	}

	if err := w.WritePCM(sine(FrameSize*3 + 100)); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if w.Frames() != 3 {
		t.Errorf("expected 3 complete frames before close, got %d", w.Frames())
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("OggS")) {
		t.Fatal("expected stream to start with an Ogg page")
	}
	if !bytes.Contains(buf.Bytes(), []byte("OpusHead")) {
		t.Error("expected OpusHead identification header")
	}
	if !bytes.Contains(buf.Bytes(), []byte("OpusTags")) {
		t.Error("expected OpusTags comment header")
	}

	headerLen := buf.Len()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Frames() != 4 {
		t.Errorf("expected partial frame to be flushed on close, got %d frames", w.Frames())
	}
	if buf.Len() <= headerLen {
		t.Error("expected the flushed partial frame to add a page")
	}
}

func TestWriter_NoFramesWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Frames() != 0 {
		t.Errorf("Frames() = %d, want 0", w.Frames())
	}
	if buf.Len() != 0 {
		t.Errorf("a stream without audio wrote %d bytes, want 0", buf.Len())
	}
}

func TestWriter_ShortInputStillProducesStream(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, 1)
	if err := w.WritePCM(sine(FrameSize / 4)); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("partial frame must not flush headers, got %d bytes", buf.Len())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.Frames() != 1 || !bytes.HasPrefix(buf.Bytes(), []byte("OggS")) {
		t.Errorf("frames=%d prefix=%q", w.Frames(), buf.Bytes()[:min(4, buf.Len())])
	}
}

func TestWriter_SplitWrites(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, 1)
	pcm := sine(FrameSize * 2)
	for i := 0; i < len(pcm); i += 100 {
		end := min(i+100, len(pcm))
		if err := w.WritePCM(pcm[i:end]); err != nil {
			t.Fatalf("WritePCM: %v", err)
		}
	}
	if w.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", w.Frames())
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := w.WritePCM(sine(10)); err == nil {
		t.Error("expected error writing after close")
	}
}

func TestNewWriter_BadChannels(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, 3); err == nil {
		t.Error("expected error for 3 channels")
	}
}

func TestWithBitrate(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 2, WithBitrate(64000))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WritePCM(sine(FrameSize * 2)); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if w.Frames() != 1 {
		t.Errorf("stereo: expected 1 frame from %d interleaved samples, got %d", FrameSize*2, w.Frames())
	}
}
