package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sanduabey/zen/internal/client"
	"github.com/sanduabey/zen/internal/session"
	"github.com/sanduabey/zen/pkg/audio"
	audiomock "github.com/sanduabey/zen/pkg/audio/mock"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr bool
	}{
		{"", command{kind: cmdToggle}, false},
		{"   ", command{kind: cmdToggle}, false},
		{"q", command{kind: cmdQuit}, false},
		{"T", command{kind: cmdTranscript}, false},
		{"r 3", command{kind: cmdReplay, index: 3}, false},
		{"replay 1", command{kind: cmdReplay, index: 1}, false},
		{"r", command{}, true},
		{"r 0", command{}, true},
		{"r x", command{}, true},
		{"dance", command{}, true},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCommand(%q) err = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
	if _, err := parseCommand("dance"); !errors.Is(err, errUnknownCommand) {
		t.Errorf("expected errUnknownCommand, got %v", err)
	}
}

type stubSubmitter struct{}

func (stubSubmitter) VoiceTurn(context.Context, client.Request) (*client.Response, error) {
	return &client.Response{Transcript: "hello", ReplyText: "hi there", ReplyAudio: []byte("ID3")}, nil
}

// syncSession waits for background work after every toggle so the REPL
// input can be scripted.
type syncSession struct {
	*session.Session
}

func (s syncSession) StopRecording() error {
	err := s.Session.StopRecording()
	s.Session.Wait()
	return err
}

func TestRunREPL(t *testing.T) {
	player := &audiomock.Player{}
	src := &audiomock.Source{Supported: []audio.Encoding{audio.OggOpus}, Final: []byte("OggS")}
	sess, err := session.New(session.Config{
		Device:    &audiomock.Device{Source: src},
		Submitter: stubSubmitter{},
		Player:    player,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	defer sess.Close()

	in := strings.NewReader("\n\nt\nr 2\nr 9\nbogus\nq\nnever reached\n")
	var out bytes.Buffer
	if err := runREPL(context.Background(), in, &out, syncSession{sess}); err != nil {
		t.Fatalf("runREPL: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"1 user:     hello",
		"2 assistant: hi there [audio]",
		"no such turn",
		`unknown command "bogus"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := len(player.Plays()); n != 2 {
		t.Errorf("expected autoplay + replay, got %d plays", n)
	}
}

func TestPrintTranscript_Empty(t *testing.T) {
	var out bytes.Buffer
	printTranscript(&out, nil)
	if !strings.Contains(out.String(), "empty") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStatusPrinter(t *testing.T) {
	var out bytes.Buffer
	p := statusPrinter(&out)
	p(session.Snapshot{Status: session.StatusRecording})
	p(session.Snapshot{Status: session.StatusRecording})
	p(session.Snapshot{Status: session.StatusReady, Transcript: []session.Turn{
		{Speaker: session.SpeakerUser, Text: "a"},
		{Speaker: session.SpeakerAssistant, Text: "b"},
	}})
	got := out.String()
	if strings.Count(got, session.StatusRecording) != 1 {
		t.Errorf("repeated status should print once:\n%s", got)
	}
	if !strings.Contains(got, "2 assistant: b") {
		t.Errorf("missing turn:\n%s", got)
	}
}
