// Package session implements the client-side recorder and conversation
// transcript.
//
// A [Session] captures one utterance at a time from an [audio.Device],
// submits it together with the trimmed transcript history, appends the user
// and assistant turns it gets back, and plays the reply clip. The session
// owns its capture source, chunk buffer and player, and releases them on a
// single path whatever the outcome.
//
// All methods are safe for concurrent use.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanduabey/zen/internal/client"
	"github.com/sanduabey/zen/pkg/audio"
	"github.com/sanduabey/zen/pkg/types"
)

// DefaultHistoryLimit is the number of transcript entries sent with a turn.
const DefaultHistoryLimit = 8

var (
	// ErrBusy is returned when an operation is not allowed in the current state.
	ErrBusy = errors.New("session: busy")

	// ErrClosed is returned after [Session.Close].
	ErrClosed = errors.New("session: closed")

	// ErrNoSuchTurn is returned by [Session.ReplayAudio] for an index outside
	// the transcript.
	ErrNoSuchTurn = errors.New("session: no such turn")
)

// Turn is one immutable transcript entry.
type Turn struct {
	ID      string
	Speaker Speaker
	Text    string

	// Audio is the reply clip of an assistant turn, if any.
	Audio []byte

	At time.Time
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State      State
	Status     string
	Transcript []Turn
}

// Submitter sends one voice turn to the server.
type Submitter interface {
	VoiceTurn(ctx context.Context, req client.Request) (*client.Response, error)
}

// Config configures a [Session].
type Config struct {
	// Device provides capture sources. Required.
	Device audio.Device

	// Submitter sends recordings to the server. Required.
	Submitter Submitter

	// Player plays reply clips. Nil disables playback; replies then carry
	// the "press replay" status.
	Player audio.Player

	// HistoryLimit bounds the history sent with each turn. Defaults to 8.
	HistoryLimit int

	// OnChange is called with a fresh snapshot after every state, status or
	// transcript change. It runs outside the session lock and may call
	// Snapshot but must not block for long. May be nil.
	OnChange func(Snapshot)
}

// Session is the recorder/session controller.
type Session struct {
	device       audio.Device
	submitter    Submitter
	player       audio.Player
	historyLimit int
	onChange     func(Snapshot)
	now          func() time.Time

	mu     sync.Mutex
	state  State
	status string
	turns  []Turn
	source audio.Source
	rec    audio.Recording
	enc    audio.Encoding
	chunks [][]byte
	closed bool

	wg sync.WaitGroup
}

// New creates a Session in [StateIdle].
func New(cfg Config) (*Session, error) {
	if cfg.Device == nil {
		return nil, errors.New("session: device is required")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("session: submitter is required")
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Session{
		device:       cfg.Device,
		submitter:    cfg.Submitter,
		player:       cfg.Player,
		historyLimit: limit,
		onChange:     cfg.OnChange,
		now:          time.Now,
		state:        StateIdle,
		status:       StatusReady,
	}, nil
}

// Snapshot returns a copy of the current state, status and transcript.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{State: s.state, Status: s.status, Transcript: turns}
}

// notify delivers a snapshot to OnChange. Must be called without s.mu held.
func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}

// setStateLocked moves to next. Illegal transitions are logged and ignored.
func (s *Session) setStateLocked(next State) bool {
	if s.state == next {
		return true
	}
	if !canTransition(s.state, next) {
		slog.Warn("session: illegal state transition", "from", s.state, "to", next)
		return false
	}
	slog.Debug("session: state changed", "from", s.state, "to", next)
	s.state = next
	return true
}

// StartRecording acquires a capture source and begins recording in the first
// supported encoding of [audio.Preferred]. It returns [ErrBusy] while
// recording or processing. Capture failures set the matching status, leave
// the session idle and release any partially acquired source.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.state.resting() {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot record while %s", ErrBusy, s.state)
	}
	if s.player != nil {
		s.player.Stop()
	}
	if prev := s.source; prev != nil {
		s.source = nil
		if err := prev.Release(); err != nil {
			slog.Warn("session: release previous capture source", "err", err)
		}
	}

	err := s.startLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Session) startLocked(ctx context.Context) error {
	fail := func(status string, err error) error {
		s.status = status
		if s.state == StateErrorDisplayed {
			s.setStateLocked(StateIdle)
		}
		slog.Warn("session: start recording failed", "err", err)
		return err
	}

	src, err := s.device.Acquire(ctx)
	if err != nil {
		return fail(captureStatus(err), fmt.Errorf("session: acquire capture device: %w", err))
	}

	enc, ok := audio.SelectEncoding(src)
	if !ok {
		s.releaseSource(src)
		return fail(StatusNoEncoding, fmt.Errorf("session: %w", audio.ErrUnsupportedEncoding))
	}

	rec, err := src.Start(enc)
	if err != nil {
		s.releaseSource(src)
		return fail(captureStatus(err), fmt.Errorf("session: start capture: %w", err))
	}

	s.source = src
	s.rec = rec
	s.enc = enc
	s.chunks = nil
	s.setStateLocked(StateRecording)
	s.status = StatusRecording
	slog.Info("session: recording started", "encoding", enc.MIMEType)

	s.wg.Add(1)
	go s.collect(rec)
	return nil
}

// captureStatus maps a capture error to its status text.
func captureStatus(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return StatusPermissionDenied
	case errors.Is(err, audio.ErrNoDevice):
		return StatusNoDevice
	case errors.Is(err, audio.ErrUnsupportedEncoding):
		return StatusNoEncoding
	default:
		return StatusCaptureFailed
	}
}

func (s *Session) releaseSource(src audio.Source) {
	if err := src.Release(); err != nil {
		slog.Warn("session: release capture source", "err", err)
	}
}

// StopRecording asks the active recording to finalize. Submission starts
// once the recording's chunk stream closes. Calling it while not recording
// is a logged no-op.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	if s.state != StateRecording || s.rec == nil {
		state := s.state
		s.mu.Unlock()
		slog.Info("session: stop requested while not recording", "state", state)
		return nil
	}
	rec := s.rec
	s.mu.Unlock()

	if err := rec.Stop(); err != nil {
		return fmt.Errorf("session: stop recording: %w", err)
	}
	return nil
}

// collect accumulates chunks until the recording finalizes, then submits.
func (s *Session) collect(rec audio.Recording) {
	defer s.wg.Done()
	for chunk := range rec.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}
	s.finish(rec)
}

// finish runs the submission step for a finalized recording.
func (s *Session) finish(rec audio.Recording) {
	s.mu.Lock()
	if s.rec != rec {
		s.mu.Unlock()
		return
	}
	src := s.source
	s.source = nil
	s.rec = nil
	data := bytes.Join(s.chunks, nil)
	s.chunks = nil
	enc := s.enc
	closed := s.closed
	if closed {
		s.setStateLocked(StateIdle)
	}
	s.mu.Unlock()

	// Free the microphone before any network I/O.
	if src != nil {
		s.releaseSource(src)
	}
	if closed {
		return
	}

	if err := rec.Err(); err != nil && len(data) == 0 {
		slog.Warn("session: recording failed", "err", err)
		s.endRecording(StatusCaptureFailed)
		return
	}
	if len(data) == 0 {
		slog.Info("session: no audio captured, skipping submission")
		s.endRecording(StatusNoAudio)
		return
	}

	s.mu.Lock()
	history := s.historyLocked()
	s.setStateLocked(StateProcessing)
	s.status = StatusProcessing
	s.mu.Unlock()
	s.notify()

	// The submission is not tied to any caller context and is never
	// cancelled once sent.
	resp, err := s.submitter.VoiceTurn(context.Background(), client.Request{
		Audio:    data,
		Encoding: enc,
		History:  history,
	})
	if err != nil {
		s.fail(err)
		return
	}
	s.succeed(resp)
}

// endRecording leaves StateRecording without a submission.
func (s *Session) endRecording(status string) {
	s.mu.Lock()
	s.setStateLocked(StateIdle)
	s.status = status
	s.mu.Unlock()
	s.notify()
}

// historyLocked returns the last historyLimit transcript entries that are
// user or assistant turns, oldest first.
func (s *Session) historyLocked() []types.Message {
	start := max(0, len(s.turns)-s.historyLimit)
	var out []types.Message
	for _, t := range s.turns[start:] {
		switch t.Speaker {
		case SpeakerUser:
			out = append(out, types.Message{Role: types.RoleUser, Content: t.Text})
		case SpeakerAssistant:
			out = append(out, types.Message{Role: types.RoleAssistant, Content: t.Text})
		}
	}
	return out
}

func (s *Session) fail(err error) {
	slog.Warn("session: voice turn failed", "err", err)
	s.mu.Lock()
	s.appendLocked(Turn{Speaker: SpeakerError, Text: err.Error()})
	s.setStateLocked(StateErrorDisplayed)
	s.status = StatusError
	s.mu.Unlock()
	s.notify()
}

func (s *Session) succeed(resp *client.Response) {
	userText := resp.Transcript
	if userText == "" {
		userText = NoTranscription
	}

	s.mu.Lock()
	s.appendLocked(Turn{Speaker: SpeakerUser, Text: userText})
	s.appendLocked(Turn{Speaker: SpeakerAssistant, Text: resp.ReplyText, Audio: resp.ReplyAudio})
	s.setStateLocked(StateIdle)
	closed := s.closed
	switch {
	case resp.ReplyAudio == nil:
		s.status = StatusTextOnly
	case s.player == nil || closed:
		s.status = StatusPlaybackFailed
	default:
		s.status = StatusPlaying
	}
	playing := s.status == StatusPlaying
	s.mu.Unlock()
	s.notify()

	if !playing {
		return
	}
	err := s.player.Play(context.Background(), resp.ReplyAudio)

	s.mu.Lock()
	if s.status != StatusPlaying {
		// A new recording or replay took over the status.
		s.mu.Unlock()
		return
	}
	if err != nil {
		slog.Warn("session: playback failed", "err", err)
		s.status = StatusPlaybackFailed
	} else {
		s.status = StatusReady
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) appendLocked(t Turn) {
	t.ID = uuid.NewString()
	t.At = s.now()
	s.turns = append(s.turns, t)
}

// ReplayAudio plays the clip of the turn at index. It is a no-op for turns
// without audio and returns [ErrBusy] while recording.
func (s *Session) ReplayAudio(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= len(s.turns) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchTurn, index)
	}
	if s.state == StateRecording {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot replay while recording", ErrBusy)
	}
	clip := s.turns[index].Audio
	player := s.player
	s.mu.Unlock()

	if len(clip) == 0 {
		return nil
	}
	if player == nil {
		return fmt.Errorf("session: replay: %w", audio.ErrPlaybackFailed)
	}
	player.Stop()
	if err := player.Play(ctx, clip); err != nil {
		s.mu.Lock()
		s.status = StatusPlaybackFailed
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("session: replay: %w", err)
	}
	return nil
}

// Close stops an active recording, releases the capture source and stops
// playback. An in-flight submission is not cancelled; its result is still
// appended to the transcript but not played.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rec := s.rec
	src := s.source
	s.source = nil
	s.chunks = nil
	s.mu.Unlock()

	var errs []error
	if rec != nil {
		if err := rec.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("session: stop recording: %w", err))
		}
	}
	if src != nil {
		if err := src.Release(); err != nil {
			errs = append(errs, fmt.Errorf("session: release capture source: %w", err))
		}
	}
	if s.player != nil {
		s.player.Stop()
	}
	return errors.Join(errs...)
}

// Wait blocks until background capture, submission and playback finish.
func (s *Session) Wait() {
	s.wg.Wait()
}
