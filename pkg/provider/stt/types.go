package stt

import "time"

// Transcript represents the result of transcribing one recording.
type Transcript struct {
	// Text is the transcribed speech content. Empty when nothing was heard.
	Text string

	// Language is the detected or requested BCP-47 language, when reported.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the recording as reported by the provider.
	Duration time.Duration
}
