package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls the file.
const DefaultWatchInterval = 5 * time.Second

// Change is one accepted edit of the watched file.
type Change struct {
	Old, New *Config

	// Diff is Diff(Old, New). It is never empty.
	Diff ConfigDiff
}

// Watcher keeps the server's view of a config file current. Each poll
// compares the file's mtime and then its content hash. A valid edit that
// changes anything the server reads is delivered as a [Change]. Invalid
// edits keep the previous config and are reported by [Watcher.Err] until
// the file is fixed.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(Change)

	// checkMu serialises polls and explicit reloads.
	checkMu sync.Mutex

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	hash    [sha256.Size]byte // accepted content

	rejected [sha256.Size]byte
	lastErr  error

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it. onChange runs on the polling
// goroutine (or the caller of [Watcher.Reload]) and may be nil.
func NewWatcher(path string, onChange func(Change), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	if snap.cfg == nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", snap.parseErr)
	}
	w.current, w.mtime, w.hash = snap.cfg, snap.mtime, snap.hash

	go w.poll()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Err returns why the file on disk was last rejected, or nil when the
// current config matches the file.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Reload re-reads the file now, ignoring the mtime shortcut. It returns the
// load error, if any; the previous config stays current in that case.
func (w *Watcher) Reload() error {
	return w.check(true)
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			_ = w.check(false)
		}
	}
}

func (w *Watcher) check(force bool) error {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
			return w.reject(err)
		}
		w.mu.Lock()
		unchanged := info.ModTime().Equal(w.mtime) && w.lastErr == nil
		w.mu.Unlock()
		if unchanged {
			return nil
		}
	}

	snap, err := readSnapshot(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return w.reject(err)
	}

	w.mu.Lock()
	w.mtime = snap.mtime
	if snap.hash == w.hash {
		// touched, or restored to the accepted content
		w.lastErr = nil
		w.mu.Unlock()
		return nil
	}
	if snap.cfg == nil {
		repeat := snap.hash == w.rejected
		w.rejected = snap.hash
		w.lastErr = snap.parseErr
		w.mu.Unlock()
		if !repeat {
			slog.Warn("config watcher: keeping previous config", "path", w.path, "err", snap.parseErr)
		}
		return snap.parseErr
	}
	old := w.current
	w.current, w.hash, w.lastErr = snap.cfg, snap.hash, nil
	w.mu.Unlock()

	d := Diff(old, snap.cfg)
	if d.Empty() {
		slog.Debug("config watcher: edit does not affect the server", "path", w.path)
		return nil
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level", d.LogLevelChanged,
		"pipeline", d.PipelineChanged,
		"voices", d.VoicesChanged,
		"restart_required", d.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(Change{Old: old, New: snap.cfg, Diff: d})
	}
	return nil
}

func (w *Watcher) reject(err error) error {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	return err
}

// snapshot is one read of the config file. cfg is nil when the content
// failed to parse or validate; parseErr then says why.
type snapshot struct {
	cfg      *Config
	parseErr error
	hash     [sha256.Size]byte
	mtime    time.Time
}

// readSnapshot returns an error only when the file itself cannot be read.
func readSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{hash: sha256.Sum256(data), mtime: info.ModTime()}
	snap.cfg, snap.parseErr = LoadFromReader(bytes.NewReader(data))
	return snap, nil
}
