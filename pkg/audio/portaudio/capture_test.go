package portaudio

import (
	"testing"

	"github.com/sanduabey/zen/pkg/audio/oggopus"
)

// drainChunks closes ch and returns the total number of bytes it carried.
func drainChunks(ch chan []byte) (chunks, bytes int) {
	close(ch)
	for c := range ch {
		chunks++
		bytes += len(c)
	}
	return chunks, bytes
}

func TestCaptureEncoder_StopBeforeAudioEmitsNothing(t *testing.T) {
	ch := make(chan []byte, chunkBuffer)
	w, err := oggopus.NewWriter(chunkWriter(ch), captureChannels)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n, size := drainChunks(ch); n != 0 {
		t.Errorf("recording without frames emitted %d chunks (%d bytes), want none", n, size)
	}
}

func TestCaptureEncoder_OneFrameEmitsStream(t *testing.T) {
	ch := make(chan []byte, chunkBuffer)
	w, err := oggopus.NewWriter(chunkWriter(ch), captureChannels)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WritePCM(make([]int16, oggopus.FrameSize)); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	first := <-ch
	if string(first[:4]) != "OggS" {
		t.Errorf("first chunk starts with %q, want an Ogg page", first[:4])
	}
	if n, _ := drainChunks(ch); n == 0 {
		t.Error("expected audio pages after the headers")
	}
}
