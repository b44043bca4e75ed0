package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sanduabey/zen/internal/session"
)

// controller is the part of [session.Session] the prompt drives.
type controller interface {
	StartRecording(ctx context.Context) error
	StopRecording() error
	ReplayAudio(ctx context.Context, index int) error
	Snapshot() session.Snapshot
}

type commandKind int

const (
	cmdToggle commandKind = iota
	cmdReplay
	cmdTranscript
	cmdQuit
	cmdHelp
)

type command struct {
	kind  commandKind
	index int // 1-based turn number for cmdReplay
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand parses one input line. An empty line toggles recording.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdToggle}, nil
	}
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return command{kind: cmdQuit}, nil
	case "t", "transcript":
		return command{kind: cmdTranscript}, nil
	case "h", "help", "?":
		return command{kind: cmdHelp}, nil
	case "r", "replay":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: r <turn number>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return command{}, fmt.Errorf("invalid turn number %q", fields[1])
		}
		return command{kind: cmdReplay, index: n}, nil
	}
	return command{}, fmt.Errorf("%w %q", errUnknownCommand, fields[0])
}

const helpText = `Commands:
  <Enter>   start or stop recording
  r N       replay the audio of turn N
  t         print the transcript
  q         quit`

// runREPL reads commands from in until EOF or quit.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, s controller) error {
	fmt.Fprintln(out, helpText)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, err := parseCommand(sc.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		switch cmd.kind {
		case cmdQuit:
			return nil
		case cmdHelp:
			fmt.Fprintln(out, helpText)
		case cmdTranscript:
			printTranscript(out, s.Snapshot().Transcript)
		case cmdToggle:
			if s.Snapshot().State == session.StateRecording {
				err = s.StopRecording()
			} else {
				err = s.StartRecording(ctx)
			}
		case cmdReplay:
			err = s.ReplayAudio(ctx, cmd.index-1)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

func printTranscript(out io.Writer, turns []session.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "(transcript is empty)")
		return
	}
	for i, t := range turns {
		marker := ""
		if len(t.Audio) > 0 {
			marker = " [audio]"
		}
		fmt.Fprintf(out, "%3d %-9s %s%s\n", i+1, t.Speaker+":", t.Text, marker)
	}
}
