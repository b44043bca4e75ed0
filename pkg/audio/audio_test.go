package audio_test

import (
	"testing"

	"github.com/sanduabey/zen/pkg/audio"
)

type supportSet map[string]bool

func (s supportSet) Supports(enc audio.Encoding) bool            { return s[enc.MIMEType] }
func (supportSet) Start(audio.Encoding) (audio.Recording, error) { return nil, nil }
func (supportSet) Release() error                                { return nil }

func TestSelectEncoding_PreferenceOrder(t *testing.T) {
	tests := []struct {
		name      string
		supported []string
		want      audio.Encoding
		ok        bool
	}{
		{"all", []string{"audio/aac", "audio/mp4", "audio/ogg;codecs=opus", "audio/webm", "audio/webm;codecs=opus"}, audio.WebMOpus, true},
		{"plain webm", []string{"audio/webm", "audio/mp4"}, audio.WebM, true},
		{"ogg over mp4", []string{"audio/mp4", "audio/ogg;codecs=opus"}, audio.OggOpus, true},
		{"aac only", []string{"audio/aac"}, audio.AAC, true},
		{"none", []string{"audio/wav"}, audio.Encoding{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := supportSet{}
			for _, m := range tt.supported {
				s[m] = true
			}
			got, ok := audio.SelectEncoding(s)
			if ok != tt.ok || got != tt.want {
				t.Errorf("SelectEncoding = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEncodingForMIME(t *testing.T) {
	tests := []struct {
		mime    string
		wantExt string
		ok      bool
	}{
		{"audio/webm;codecs=opus", ".webm", true},
		{"AUDIO/OGG; codecs=opus", ".ogg", true},
		{"audio/mp4", ".mp4", true},
		{"audio/aac", ".aac", true},
		{"audio/mpeg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		enc, ok := audio.EncodingForMIME(tt.mime)
		if ok != tt.ok || enc.Extension() != tt.wantExt {
			t.Errorf("EncodingForMIME(%q) = %v, %v; want ext %q, %v", tt.mime, enc, ok, tt.wantExt, tt.ok)
		}
	}
}

func TestEncodingForFilename(t *testing.T) {
	tests := []struct {
		name string
		want audio.Encoding
		ok   bool
	}{
		{"recording.webm", audio.WebMOpus, true},
		{"clip.OGG", audio.OggOpus, true},
		{"a.m4a", audio.Encoding{}, false},
		{"recording", audio.Encoding{}, false},
	}
	for _, tt := range tests {
		enc, ok := audio.EncodingForFilename(tt.name)
		if ok != tt.ok || enc != tt.want {
			t.Errorf("EncodingForFilename(%q) = %v, %v; want %v, %v", tt.name, enc, ok, tt.want, tt.ok)
		}
	}
}

func TestEncoding_BaseMIMEType(t *testing.T) {
	if got := audio.OggOpus.BaseMIMEType(); got != "audio/ogg" {
		t.Errorf("got %q", got)
	}
	if got := audio.MP4.BaseMIMEType(); got != "audio/mp4" {
		t.Errorf("got %q", got)
	}
}

func TestDrain(t *testing.T) {
	ch := make(chan []byte, 3)
	ch <- []byte{1}
	ch <- []byte{2}
	close(ch)
	audio.Drain(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be drained")
	}
}
