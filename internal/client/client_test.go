package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/types"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestVoiceTurn_EncodesMultipart(t *testing.T) {
	t.Parallel()
	var (
		gotFile    string
		gotType    string
		gotAudio   string
		gotHistory []types.Message
		gotSession string
	)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/voice-turn" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotSession = r.Header.Get("X-Session-ID")
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		gotAudio = string(b)
		gotFile = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		_ = json.Unmarshal([]byte(r.FormValue("history")), &gotHistory)
		reply(http.StatusOK, `{"userTranscript":"hi","llmTextResponse":"hello","audioBase64":"SUQz"}`)(w, r)
	})

	c := New(srv.URL+"/", WithSessionID("sess-1"))
	history := []types.Message{{Role: types.RoleUser, Content: "earlier"}}
	resp, err := c.VoiceTurn(context.Background(), Request{
		Audio:    []byte("OggS"),
		Encoding: audio.OggOpus,
		History:  history,
	})
	if err != nil {
		t.Fatalf("VoiceTurn: %v", err)
	}
	if gotFile != "recording.ogg" || gotType != audio.OggOpus.MIMEType || gotAudio != "OggS" {
		t.Errorf("audio part = %q %q %q", gotFile, gotType, gotAudio)
	}
	if len(gotHistory) != 1 || gotHistory[0] != history[0] {
		t.Errorf("history = %+v", gotHistory)
	}
	if gotSession != "sess-1" {
		t.Errorf("X-Session-ID = %q", gotSession)
	}
	if resp.Transcript != "hi" || resp.ReplyText != "hello" || string(resp.ReplyAudio) != "ID3" {
		t.Errorf("response = %+v", resp)
	}
}

func TestVoiceTurn_EmptyHistoryIsArray(t *testing.T) {
	t.Parallel()
	var raw string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.FormValue("history")
		reply(http.StatusOK, `{"userTranscript":"","llmTextResponse":"x","audioBase64":null}`)(w, r)
	})
	if _, err := New(srv.URL).VoiceTurn(context.Background(), Request{Audio: []byte{1}, Encoding: audio.WebMOpus}); err != nil {
		t.Fatalf("VoiceTurn: %v", err)
	}
	if raw != "[]" {
		t.Errorf("history = %q, want []", raw)
	}
}

func TestVoiceTurn_ResponseValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantAudio bool
	}{
		{"text only null", `{"userTranscript":"a","llmTextResponse":"b","audioBase64":null}`, false, false},
		{"text only absent", `{"userTranscript":"a","llmTextResponse":"b"}`, false, false},
		{"with audio", `{"userTranscript":"a","llmTextResponse":"b","audioBase64":"SUQz"}`, false, true},
		{"missing transcript", `{"llmTextResponse":"b"}`, true, false},
		{"missing reply", `{"userTranscript":"a"}`, true, false},
		{"null transcript", `{"userTranscript":null,"llmTextResponse":"b"}`, true, false},
		{"numeric reply", `{"userTranscript":"a","llmTextResponse":42}`, true, false},
		{"bad base64", `{"userTranscript":"a","llmTextResponse":"b","audioBase64":"***"}`, true, false},
		{"not json", `<html>`, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := serve(t, reply(http.StatusOK, tt.body))
			resp, err := New(srv.URL).VoiceTurn(context.Background(), Request{Audio: []byte{1}, Encoding: audio.OggOpus})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResponse) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VoiceTurn: %v", err)
			}
			if (resp.ReplyAudio != nil) != tt.wantAudio {
				t.Errorf("ReplyAudio = %v, want audio %v", resp.ReplyAudio, tt.wantAudio)
			}
		})
	}
}

func TestVoiceTurn_StatusErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"structured 500", http.StatusInternalServerError, `{"error":"Failed to process voice turn","details":"bad history"}`, "Failed to process voice turn: bad history"},
		{"structured 400", http.StatusBadRequest, `{"error":"No audio file provided"}`, "No audio file provided"},
		{"plain 502", http.StatusBadGateway, `upstream down`, "server returned 502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := serve(t, reply(tt.status, tt.body))
			_, err := New(srv.URL).VoiceTurn(context.Background(), Request{Audio: []byte{1}, Encoding: audio.OggOpus})
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if se.StatusCode != tt.status || se.Error() != tt.wantMsg {
				t.Errorf("got %d %q, want %d %q", se.StatusCode, se.Error(), tt.status, tt.wantMsg)
			}
		})
	}
}

func TestVoiceTurn_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := New(url).VoiceTurn(context.Background(), Request{Audio: []byte{1}, Encoding: audio.OggOpus})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Error("transport failure should not be a StatusError")
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)
	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).VoiceTurn(context.Background(), Request{Audio: []byte{1}, Encoding: audio.OggOpus})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNew_GeneratesSessionID(t *testing.T) {
	t.Parallel()
	a, b := New("http://x"), New("http://x")
	if a.SessionID() == "" || a.SessionID() == b.SessionID() {
		t.Errorf("session IDs %q %q", a.SessionID(), b.SessionID())
	}
}
