// Package types defines the shared types used across all zen packages.
//
// These types form the lingua franca between providers, the voice-turn
// orchestrator, the HTTP transport and the client session. Each package defines
// its own domain types; cross-cutting data structures live here to avoid
// circular imports.
package types

import "strings"

// Role identifies the author of a conversation [Message].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the roles accepted in conversation history.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry of conversation history exchanged between the
// client, the orchestrator and the chat-completion provider.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role Role `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// Audio is an encoded audio payload together with its container/codec tag.
type Audio struct {
	// Data holds the encoded bytes exactly as captured or synthesised.
	Data []byte

	// MIMEType is the container and codec tag, e.g. "audio/webm;codecs=opus"
	// or "audio/mpeg".
	MIMEType string

	// Filename is the original upload filename when known (e.g. "recording.webm").
	// Providers that derive the format from the extension use it.
	Filename string
}

// Empty reports whether the payload carries no bytes.
func (a Audio) Empty() bool { return len(a.Data) == 0 }

// BaseMIMEType returns the MIME type with parameters stripped
// ("audio/webm;codecs=opus" → "audio/webm").
func (a Audio) BaseMIMEType() string {
	base, _, _ := strings.Cut(a.MIMEType, ";")
	return strings.TrimSpace(strings.ToLower(base))
}

// VoiceProfile selects a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g. "alloy", an
	// ElevenLabs voice ID).
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.25–4.0, 0 or 1.0 = default).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string
}
