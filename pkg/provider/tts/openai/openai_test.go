package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sanduabey/zen/pkg/types"
)

func TestSynthesize_RequestShape(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	p, err := New("key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := p.Synthesize(context.Background(), "It's sunny.", types.VoiceProfile{ID: "nova", SpeedFactor: 1.1})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip) != "ID3-mp3-bytes" {
		t.Errorf("clip: got %q", clip)
	}
	if path != "/audio/speech" {
		t.Errorf("path: got %q", path)
	}
	if body["input"] != "It's sunny." {
		t.Errorf("input: got %v", body["input"])
	}
	if body["voice"] != "nova" {
		t.Errorf("voice: got %v", body["voice"])
	}
	if body["model"] != defaultModel {
		t.Errorf("model: got %v", body["model"])
	}
	if body["response_format"] != "mp3" {
		t.Errorf("response_format: got %v", body["response_format"])
	}
	if body["speed"] != 1.1 {
		t.Errorf("speed: got %v", body["speed"])
	}
}

func TestSynthesize_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer srv.Close()

	p, _ := New("key", "", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "Hi", types.VoiceProfile{ID: "alloy"}); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestSynthesize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid voice"}}`))
	}))
	defer srv.Close()

	p, _ := New("key", "", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "Hi", types.VoiceProfile{ID: "nobody"}); err == nil {
		t.Fatal("expected error for HTTP 400")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("key", "")
	if _, err := p.Synthesize(context.Background(), "Hi", types.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice")
	}
	if _, err := p.Synthesize(context.Background(), "", types.VoiceProfile{ID: "alloy"}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	p, _ := New("key", "")
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != len(builtinVoices) {
		t.Fatalf("expected %d voices, got %d", len(builtinVoices), len(voices))
	}
	if voices[0].ID != "alloy" || voices[0].Name != "Alloy" || voices[0].Provider != "openai" {
		t.Errorf("unexpected first voice: %+v", voices[0])
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
