package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sanduabey/zen/pkg/types"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("key", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model: want %q, got %q", defaultModel, p.model)
	}
}

func TestTranscribe_MultipartUpload(t *testing.T) {
	var (
		gotPath     string
		gotModel    string
		gotLanguage string
		gotFilename string
		gotData     []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFilename = hdr.Filename
		gotData, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" What's the weather? "}`))
	}))
	defer srv.Close()

	p, err := New("key", "whisper-1", WithBaseURL(srv.URL), WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), types.Audio{
		Data:     []byte("webm-bytes"),
		MIMEType: "audio/webm;codecs=opus",
		Filename: "recording.webm",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if tr.Text != "What's the weather?" {
		t.Errorf("text: got %q", tr.Text)
	}
	if gotPath != "/audio/transcriptions" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model: got %q", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("language: got %q", gotLanguage)
	}
	if gotFilename != "recording.webm" {
		t.Errorf("filename: got %q", gotFilename)
	}
	if string(gotData) != "webm-bytes" {
		t.Errorf("data: got %q", gotData)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, _ := New("key", "", WithBaseURL(srv.URL))
	if _, err := p.Transcribe(context.Background(), types.Audio{Data: []byte{1}}); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		audio types.Audio
		want  string
	}{
		{types.Audio{Filename: "clip.ogg"}, "clip.ogg"},
		{types.Audio{MIMEType: "audio/mp4"}, "recording.mp4"},
		{types.Audio{MIMEType: "audio/ogg;codecs=opus"}, "recording.ogg"},
		{types.Audio{MIMEType: "application/x-unknown"}, "recording.webm"},
	}
	for _, tt := range tests {
		if got := filename(tt.audio); got != tt.want {
			t.Errorf("filename(%+v) = %q, want %q", tt.audio, got, tt.want)
		}
	}
}
