// Package cache provides a caching decorator for tts.Provider.
//
// Clips are keyed by a digest of the voice ID, the provider name, the speed
// factor and the exact reply text, so a cached clip always speaks the text it is returned for.
// Two backends are available: an in-process [MemoryStore] and a Redis-backed
// [RedisStore] for sharing clips between server replicas.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sanduabey/zen/pkg/provider/tts"
	"github.com/sanduabey/zen/pkg/types"
)

// Store is a byte-oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns the value for key. found is false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL sets how long synthesized clips are retained. Defaults to 24h.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// WithNamespace prefixes every key, typically with the TTS provider name so
// that switching providers does not serve stale clips.
func WithNamespace(ns string) Option {
	return func(p *Provider) {
		p.namespace = ns
	}
}

// WithLookupHook registers a callback invoked after every cache lookup with
// hit=true on a hit. Used to feed the cache metrics.
func WithLookupHook(fn func(ctx context.Context, hit bool)) Option {
	return func(p *Provider) {
		p.onLookup = fn
	}
}

// Provider wraps a tts.Provider and serves repeated (voice, text) pairs from a
// Store. Store failures are logged and bypassed; they never fail synthesis.
type Provider struct {
	inner     tts.Provider
	store     Store
	ttl       time.Duration
	namespace string
	onLookup  func(ctx context.Context, hit bool)
}

var _ tts.Provider = (*Provider)(nil)

// New wraps inner with a cache backed by store.
func New(inner tts.Provider, store Store, opts ...Option) (*Provider, error) {
	if inner == nil {
		return nil, errors.New("cache: inner provider must not be nil")
	}
	if store == nil {
		return nil, errors.New("cache: store must not be nil")
	}
	p := &Provider{
		inner: inner,
		store: store,
		ttl:   24 * time.Hour,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize returns the cached clip for (voice, text) or synthesizes and
// stores it.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	key := p.Key(text, voice)

	clip, found, err := p.store.Get(ctx, key)
	if err != nil {
		slog.Warn("speech cache lookup failed", "err", err)
	}
	if p.onLookup != nil {
		p.onLookup(ctx, found && len(clip) > 0)
	}
	if found && len(clip) > 0 {
		return clip, nil
	}

	clip, err = p.inner.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if len(clip) > 0 {
		if err := p.store.Set(ctx, key, clip, p.ttl); err != nil {
			slog.Warn("speech cache store failed", "err", err)
		}
	}
	return clip, nil
}

// ListVoices delegates to the wrapped provider.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return p.inner.ListVoices(ctx)
}

// Ping reports the health of the backing store.
func (p *Provider) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

// Close closes the backing store.
func (p *Provider) Close() error {
	return p.store.Close()
}

// Key derives the store key for a (voice, text) pair.
func (p *Provider) Key(text string, voice types.VoiceProfile) string {
	h := sha256.New()
	h.Write([]byte(voice.ID))
	h.Write([]byte{0})
	h.Write([]byte(voice.Provider))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(voice.SpeedFactor, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := hex.EncodeToString(h.Sum(nil))
	if p.namespace == "" {
		return "speech:" + sum
	}
	return "speech:" + p.namespace + ":" + sum
}
