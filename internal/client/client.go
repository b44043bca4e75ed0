// Package client submits voice turns to a zen server.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/types"
)

// ErrInvalidResponse is returned when a 2xx response body does not carry
// the expected fields.
var ErrInvalidResponse = errors.New("client: invalid voice-turn response")

const voiceTurnPath = "/api/voice-turn"

// Request is one recorded utterance plus the history to send with it.
type Request struct {
	Audio    []byte
	Encoding audio.Encoding
	History  []types.Message
}

// Response is a validated voice-turn result.
type Response struct {
	Transcript string
	ReplyText  string

	// ReplyAudio is the MP3 reply, nil when the server answered text only.
	ReplyAudio []byte
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Client talks to one zen server.
type Client struct {
	baseURL   string
	http      *http.Client
	sessionID string
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each submission. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithSessionID sets the X-Session-ID header value. Defaults to a random UUID.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		sessionID: uuid.NewString(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SessionID returns the identifier sent with every request.
func (c *Client) SessionID() string { return c.sessionID }

// VoiceTurn submits req as one multipart request and validates the reply.
// Non-2xx responses return a [*StatusError]; malformed 2xx bodies return an
// error wrapping [ErrInvalidResponse].
func (c *Client) VoiceTurn(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+voiceTurnPath, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Session-ID", c.sessionID)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: send voice turn: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, raw)
	}
	return decodeResponse(raw)
}

// encodeRequest builds the multipart body. The audio part's filename carries
// the extension matching the encoding.
func encodeRequest(req Request) (io.Reader, string, error) {
	history := req.History
	if history == nil {
		history = []types.Message{}
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return nil, "", fmt.Errorf("client: encode history: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="recording%s"`, req.Encoding.Extension()))
	h.Set("Content-Type", req.Encoding.MIMEType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("client: create audio part: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("client: write audio part: %w", err)
	}
	if err := mw.WriteField("history", string(hist)); err != nil {
		return nil, "", fmt.Errorf("client: write history field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("client: close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// decodeResponse validates that userTranscript and llmTextResponse are JSON
// strings and that audioBase64, when present and non-null, is valid base64.
func decodeResponse(raw []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var out Response
	for key, dst := range map[string]*string{
		"userTranscript":  &out.Transcript,
		"llmTextResponse": &out.ReplyText,
	} {
		v, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidResponse, key)
		}
		if err := json.Unmarshal(v, dst); err != nil || !isJSONString(v) {
			return nil, fmt.Errorf("%w: %s is not a string", ErrInvalidResponse, key)
		}
	}

	if v, ok := fields["audioBase64"]; ok && !isJSONNull(v) {
		var enc string
		if err := json.Unmarshal(v, &enc); err != nil {
			return nil, fmt.Errorf("%w: audioBase64 is not a string", ErrInvalidResponse)
		}
		if enc != "" {
			clip, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("%w: audioBase64: %v", ErrInvalidResponse, err)
			}
			out.ReplyAudio = clip
		}
	}
	return &out, nil
}

// statusError prefers the structured {error, details} body and falls back
// to the HTTP status text.
func statusError(resp *http.Response, raw []byte) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		se.Message = body.Error
		se.Details = body.Details
		return se
	}
	se.Message = fmt.Sprintf("server returned %s", resp.Status)
	return se
}

func isJSONString(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '"'
}

func isJSONNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
