// Package cache stores rendered output keyed by note content and settings,
// so the preview server can skip render passes for unchanged notes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

// DefaultTTL is how long rendered output is kept.
const DefaultTTL = 10 * time.Minute

// keyVersion changes whenever rendered output changes shape.
const keyVersion = "v2"

// Lookup results recorded in metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Cache stores rendered output.
type Cache interface {
	// Get returns the value for key, or an error wrapping errors.ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Name identifies the backend in metrics and logs.
	Name() string
}

// Key derives a cache key from the output format, the note's path relative
// to the notes root, the raw note bytes and the settings that shaped the
// render. The path is part of the key because structured output embeds it.
func Key(format, path string, note []byte, s settings.Settings) string {
	h := sha256.New()
	h.Write([]byte(keyVersion))
	h.Write([]byte{0})
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(note)
	h.Write([]byte{0})
	// Settings is a plain record; Marshal cannot fail.
	settingsJSON, _ := json.Marshal(s)
	h.Write(settingsJSON)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-process cache. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Name returns "memory".
func (m *Memory) Name() string {
	return "memory"
}

// Get returns a live entry for key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, pferrors.ErrCacheMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, pferrors.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value under key.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Instrumented wraps a Cache with lookup metrics and spans.
type Instrumented struct {
	Cache
	metrics *observability.RenderMetrics
	tracer  *observability.Tracer
}

// NewInstrumented wraps c. A nil metrics skips metric recording.
func NewInstrumented(c Cache, metrics *observability.RenderMetrics, tracer *observability.Tracer) *Instrumented {
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	return &Instrumented{Cache: c, metrics: metrics, tracer: tracer}
}

// Get looks up key and records whether it hit.
func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := c.tracer.StartCacheSpan(ctx, c.Name())
	defer span.End()
	helper := observability.NewSpanHelper(span)

	value, err := c.Cache.Get(ctx, key)
	result := ResultHit
	switch {
	case err == nil:
		helper.SetCacheHit(true)
	case pferrors.IsCacheMiss(err):
		result = ResultMiss
		helper.SetCacheHit(false)
	default:
		result = ResultError
		helper.SetError(err, string(pferrors.CodeOf(err)), pferrors.IsErrorRetryable(err))
	}
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(c.Name(), result)
	}
	return value, err
}
