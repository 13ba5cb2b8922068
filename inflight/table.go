// Package inflight implements the bounded, sequence-id-keyed command table
// shared by the ACMP and AECP controllers (spec.md §3.6, §4.4.5): send,
// retry-on-timeout up to a configured limit, then fail with ErrTimedOut.
//
// Retry backoff is computed with github.com/jpillora/backoff. A factor of
// 1.0 reproduces the spec's fixed-interval retry exactly; callers that want
// jittered backoff for noisy links can raise Factor/Jitter in Config.
package inflight

import (
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/zarfld/go-avdecc/clock"
)

// ErrTimedOut is the synthetic status produced when retries are exhausted
// (spec.md §4.3.1, §4.4.5, §7 "TimedOut").
var ErrTimedOut = errors.New("inflight: command timed out after exhausting retries")

// ErrNotFound is returned by Resolve when no pending entry matches the given
// key; per spec.md §4.4.5 this is not an error to the caller, merely a
// dropped/duplicate response, but callers that want to distinguish it from a
// successful resolve can check for it.
var ErrNotFound = errors.New("inflight: no pending command for key")

// Config bounds retry behaviour, generalizing the teacher's per-field
// Config.Valid() range-check pattern (cs104.Config) to a single small struct
// reused by both ACMP (§4.3.1) and AECP (§4.4.3) controllers.
//
// Factor/Jitter are passed straight through to github.com/jpillora/backoff.
// Leaving Factor at its zero value defaults to 1.0 (fixed-interval retry,
// exactly spec.md §4.4.5); setting Factor > 1 or Jitter lets a deployment on
// a noisy link spread retries out instead of hammering a silent peer at a
// constant period.
type Config struct {
	// Timeout is the per-attempt deadline (used as backoff.Min/Max when
	// Factor is 1.0).
	Timeout time.Duration
	// MaxRetries is the number of resends after the first send (so
	// MaxRetries=1 means 2 total attempts, matching spec.md §4.3.1's
	// default).
	MaxRetries int
	// MaxTimeout caps the backoff delay when Factor > 1. Defaults to
	// Timeout (i.e. no growth) when zero.
	MaxTimeout time.Duration
	// Factor is the backoff growth factor. Zero defaults to 1.0.
	Factor float64
	// Jitter enables randomized jitter on each computed delay.
	Jitter bool
}

// Entry is a single pending command, exported so callers can inspect
// send_time/retry_count/etc. (spec.md §3.6) for diagnostics.
type Entry struct {
	TargetEntityID uint64
	CommandType    int
	SendTime       time.Time
	TimeoutAt      time.Time
	RetryCount     int
	MaxRetries     int
	Payload        []byte // identical bytes resent verbatim on timeout
	boff           *backoff.Backoff
}

// Table is a generic, engine-thread-only inflight command table keyed by K
// (typically a 16-bit sequence id, sometimes widened with the peer entity id
// to disambiguate across concurrent targets).
type Table[K comparable] struct {
	mu      sync.Mutex
	clock   clock.Clock
	cfg     Config
	entries map[K]*Entry
}

// New builds a Table. clk supplies "now" for send_time/timeout_at.
func New[K comparable](clk clock.Clock, cfg Config) *Table[K] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Factor == 0 {
		cfg.Factor = 1.0
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = cfg.Timeout
	}
	return &Table[K]{
		clock:   clk,
		cfg:     cfg,
		entries: make(map[K]*Entry),
	}
}

func (t *Table[K]) newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    t.cfg.Timeout,
		Max:    t.cfg.MaxTimeout,
		Factor: t.cfg.Factor,
		Jitter: t.cfg.Jitter,
	}
}

// Insert registers a newly sent command under key, with timeout_at =
// send_time + Config.Timeout (spec.md §4.3.1 step 3).
func (t *Table[K]) Insert(key K, targetEntityID uint64, commandType int, payload []byte) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	boff := t.newBackoff()
	now := t.clock.Now()
	e := &Entry{
		TargetEntityID: targetEntityID,
		CommandType:    commandType,
		SendTime:       now,
		TimeoutAt:      now.Add(boff.Duration()),
		RetryCount:     0,
		MaxRetries:     t.cfg.MaxRetries,
		Payload:        payload,
		boff:           boff,
	}
	t.entries[key] = e
	return e
}

// Resolve removes and returns the entry for key on a matching response.
// Duplicate responses (arrival after completion) find nothing and return
// ErrNotFound, which callers should treat as "drop silently" per spec.md
// §4.4.5.
func (t *Table[K]) Resolve(key K) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(t.entries, key)
	return e, nil
}

// Peek returns the entry for key without removing it, for callers (e.g. the
// AECP locker) that need to inspect in-flight state without resolving it.
func (t *Table[K]) Peek(key K) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// TimeoutResult is the outcome of a single Tick pass over one key.
type TimeoutResult struct {
	Key     any
	Entry   *Entry
	Resend  bool // true: caller must resend Entry.Payload verbatim
	Expired bool // true: caller must invoke the completion with ErrTimedOut
}

// Tick scans all pending entries whose TimeoutAt has elapsed and either
// marks them for resend (advancing retry_count and timeout_at) or, once
// MaxRetries is exhausted, removes them and reports Expired (spec.md
// §4.4.5). The caller performs the actual L2 resend and completion
// invocation; Tick only mutates the bookkeeping.
func (t *Table[K]) Tick() []TimeoutResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var results []TimeoutResult
	for key, e := range t.entries {
		if now.Before(e.TimeoutAt) {
			continue
		}
		if e.RetryCount < e.MaxRetries {
			e.RetryCount++
			e.SendTime = now
			e.TimeoutAt = now.Add(e.boff.Duration())
			results = append(results, TimeoutResult{Key: key, Entry: e, Resend: true})
			continue
		}
		delete(t.entries, key)
		results = append(results, TimeoutResult{Key: key, Entry: e, Expired: true})
	}
	return results
}

// Len reports the number of pending commands, for tests and diagnostics.
func (t *Table[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
