package rate

import (
	"sync"
	"sync/atomic"
	"time"
)

// Category selects the request ceiling applied to a source.
type Category uint8

const (
	// Relaxed covers general traffic such as sign-in and session checks.
	Relaxed Category = iota
	// Strict covers admin routes and registration.
	Strict
)

func (c Category) String() string {
	if c == Strict {
		return "strict"
	}
	return "relaxed"
}

// Config holds rate limiter tuning parameters.
type Config struct {
	Window       time.Duration
	StrictLimit  int
	RelaxedLimit int
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns a 60s window with ceilings of 5 (strict) and 30 (relaxed).
func DefaultConfig() Config {
	return Config{
		Window:       time.Minute,
		StrictLimit:  5,
		RelaxedLimit: 30,
	}
}

// Decision reports the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	RetryAfter time.Duration
}

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	evicted     bool
}

// Limiter enforces a per-source fixed-window request ceiling in process
// memory. One bucket is kept per source key and shared by both categories.
type Limiter struct {
	config    Config
	mu        sync.RWMutex
	buckets   map[string]*bucket
	lastSweep atomic.Int64
}

// New creates a [Limiter]. Zero or negative fields fall back to DefaultConfig values.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.StrictLimit <= 0 {
		cfg.StrictLimit = def.StrictLimit
	}
	if cfg.RelaxedLimit <= 0 {
		cfg.RelaxedLimit = def.RelaxedLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Limiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
	}
	l.lastSweep.Store(cfg.Now().UnixNano())
	return l
}

func (l *Limiter) limit(c Category) int {
	if c == Strict {
		return l.config.StrictLimit
	}
	return l.config.RelaxedLimit
}

// Allow records one request from source and reports whether it fits the
// category ceiling. Denied requests still count toward the window.
func (l *Limiter) Allow(source string, c Category) Decision {
	if source == "" {
		source = "unknown"
	}
	now := l.config.Now()
	l.maybeSweep(now)

	limit := l.limit(c)
	for {
		b := l.bucketFor(source, now)

		b.mu.Lock()
		if b.evicted {
			b.mu.Unlock()
			continue
		}
		if now.Sub(b.windowStart) > l.config.Window {
			b.windowStart = now
			b.count = 1
		} else {
			b.count++
		}
		count := b.count
		retryAfter := b.windowStart.Add(l.config.Window).Sub(now)
		b.mu.Unlock()

		d := Decision{Allowed: count <= limit, Count: count, Limit: limit}
		if !d.Allowed {
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			d.RetryAfter = retryAfter
		}
		return d
	}
}

func (l *Limiter) bucketFor(source string, now time.Time) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[source]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[source]; ok {
		return b
	}
	// A fresh bucket starts outside the window so the first Allow resets it.
	b = &bucket{windowStart: now.Add(-2 * l.config.Window)}
	l.buckets[source] = b
	return b
}

func (l *Limiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last <= int64(l.config.Window) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	l.sweep(now)
}

// Sweep evicts buckets whose window has elapsed and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.config.Now()
	l.lastSweep.Store(now.UnixNano())
	return l.sweep(now)
}

func (l *Limiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		if now.Sub(b.windowStart) > l.config.Window {
			b.evicted = true
			delete(l.buckets, key)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked sources.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
