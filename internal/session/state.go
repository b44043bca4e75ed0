package session

import "fmt"

// State is the recorder/session state.
type State int

const (
	// StateIdle accepts a new recording or a replay.
	StateIdle State = iota

	// StateRecording is capturing an utterance.
	StateRecording

	// StateProcessing is waiting for the server to answer a submission.
	StateProcessing

	// StateErrorDisplayed is a resting state after a failed submission. It
	// behaves like StateIdle.
	StateErrorDisplayed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateErrorDisplayed:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// resting reports whether s accepts a new recording.
func (s State) resting() bool {
	return s == StateIdle || s == StateErrorDisplayed
}

// transitions lists the legal state changes.
var transitions = map[State][]State{
	StateIdle:           {StateRecording},
	StateErrorDisplayed: {StateRecording, StateIdle},
	StateRecording:      {StateIdle, StateProcessing},
	StateProcessing:     {StateIdle, StateErrorDisplayed},
}

// canTransition reports whether from → to is legal.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Speaker identifies who produced a [Turn].
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
	SpeakerError     Speaker = "error"
)

// Status texts shown to the user.
const (
	StatusReady            = "Press Enter to start recording."
	StatusRecording        = "Recording... press Enter to stop."
	StatusProcessing       = "Processing..."
	StatusPlaying          = "Playing reply..."
	StatusNoAudio          = "No audio detected. Please try again."
	StatusPermissionDenied = "Microphone access was denied. Please allow microphone access and try again."
	StatusNoDevice         = "No microphone found. Please connect one and try again."
	StatusNoEncoding       = "No supported audio format is available for recording."
	StatusCaptureFailed    = "Could not record audio. Please try again."
	StatusPlaybackFailed   = "Could not play the reply automatically. Press replay to listen."
	StatusTextOnly         = "Reply received as text only."
	StatusError            = "Something went wrong. Press Enter to try again."
)

// NoTranscription replaces an empty transcript in the user turn.
const NoTranscription = "(No transcription)"
