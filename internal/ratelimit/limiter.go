// Package ratelimit gates outbound provider calls per credential. Every
// call must pass two checks: a per-credential in-flight concurrency cap
// and a trailing 60-second sliding request window. All provider traffic
// goes through Limiter.Acquire so no path can bypass the limits.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Window is the span of the requests-per-minute sliding window.
const Window = time.Minute

// remoteRetryInterval paces re-checks when the shared counter reports
// the window full, since the counter does not expose a reset time.
const remoteRetryInterval = 250 * time.Millisecond

// Mode selects how Acquire behaves when a limit is hit.
type Mode int

const (
	// ModeFailFast rejects immediately with a RateLimitedError.
	ModeFailFast Mode = iota
	// ModeBlock suspends until a slot frees or MaxDelay elapses.
	ModeBlock
)

// RateLimitedError is returned when admission is denied or timed out.
type RateLimitedError struct {
	// TimedOut is set when a blocking acquisition exhausted MaxDelay.
	TimedOut bool
	// Scope names the cap that rejected the call: "concurrency" or "rpm".
	Scope string
}

func (e *RateLimitedError) Error() string {
	if e.TimedOut {
		return "rate limited: " + e.Scope + " acquisition timed out"
	}
	return "rate limited: " + e.Scope + " cap exceeded"
}

// Counter is a pluggable shared admission counter for cross-process
// rate limiting. Implementations must enforce the sliding window
// themselves; returning an error makes the limiter fall back to
// local-only enforcement rather than rejecting traffic.
type Counter interface {
	TryAdmit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Options configures a Limiter.
type Options struct {
	// RequestsPerMinute is the per-credential sliding-window cap; 0
	// disables the window.
	RequestsPerMinute int
	// MaxConcurrent is the per-credential in-flight cap; 0 disables it.
	MaxConcurrent int
	// MaxDelay bounds the total wait of a ModeBlock acquisition across
	// both the concurrency and RPM gates.
	MaxDelay time.Duration
	// Counter, when set, makes the RPM check authoritative in a shared
	// store; the local window remains enforced as a fallback.
	Counter Counter
}

// Permit represents one admitted in-flight slot. Release must be called
// exactly once when the call finishes; extra calls are no-ops. Window
// entries age out on their own and are never released.
type Permit struct {
	once    sync.Once
	release func()
}

// Release frees the concurrency slot.
func (p *Permit) Release() {
	p.once.Do(p.release)
}

// Limiter enforces per-credential admission. State for a credential is
// created lazily on first use and kept for the process lifetime.
type Limiter struct {
	opts Options
	now  func() time.Time

	mu   sync.Mutex
	keys map[string]*keyState
}

type keyState struct {
	sem chan struct{} // nil when the concurrency cap is disabled

	mu       sync.Mutex
	admitted []time.Time // local sliding window, oldest first
}

// New creates a Limiter from opts.
func New(opts Options) *Limiter {
	return &Limiter{
		opts: opts,
		now:  time.Now,
		keys: make(map[string]*keyState),
	}
}

// Acquire admits one call for credential or returns a RateLimitedError.
// The concurrency cap is checked first (cheap, local), then the RPM
// window. In ModeBlock both gates draw from a single MaxDelay budget,
// so the combined wait never exceeds MaxDelay. The caller must Release
// the returned Permit on every exit path.
func (l *Limiter) Acquire(ctx context.Context, credential string, mode Mode) (*Permit, error) {
	st := l.state(credential)

	var deadline <-chan time.Time
	if mode == ModeBlock {
		timer := time.NewTimer(l.opts.MaxDelay)
		defer timer.Stop()
		deadline = timer.C
	}

	if st.sem != nil {
		if err := acquireSlot(ctx, st.sem, mode, deadline); err != nil {
			return nil, err
		}
	}
	permit := &Permit{release: func() {
		if st.sem != nil {
			<-st.sem
		}
	}}

	if err := l.admitWindow(ctx, credential, st, mode, deadline); err != nil {
		permit.Release()
		return nil, err
	}
	return permit, nil
}

func acquireSlot(ctx context.Context, sem chan struct{}, mode Mode, deadline <-chan time.Time) error {
	if mode == ModeFailFast {
		select {
		case sem <- struct{}{}:
			return nil
		default:
			return &RateLimitedError{Scope: "concurrency"}
		}
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-deadline:
		return &RateLimitedError{TimedOut: true, Scope: "concurrency"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admitWindow reserves a slot in the trailing 60-second window. The
// local window is reserved first; when a shared counter is configured
// it has the final say, and a remote rejection rolls the local
// reservation back.
func (l *Limiter) admitWindow(ctx context.Context, credential string, st *keyState, mode Mode, deadline <-chan time.Time) error {
	if l.opts.RequestsPerMinute <= 0 {
		return nil
	}
	for {
		now := l.now()
		wait, ok := st.reserve(now, l.opts.RequestsPerMinute)
		if ok {
			if l.opts.Counter == nil {
				return nil
			}
			admitted, err := l.opts.Counter.TryAdmit(ctx, credential, l.opts.RequestsPerMinute, Window)
			if err != nil {
				// Shared counter unreachable: degrade to local-only
				// enforcement instead of blocking all traffic.
				slog.Warn("rate limit counter unavailable, enforcing locally", "error", err)
				return nil
			}
			if admitted {
				return nil
			}
			st.unreserve(now)
			wait = remoteRetryInterval
		}

		if mode == ModeFailFast {
			return &RateLimitedError{Scope: "rpm"}
		}

		sleep := time.NewTimer(wait)
		select {
		case <-sleep.C:
		case <-deadline:
			sleep.Stop()
			return &RateLimitedError{TimedOut: true, Scope: "rpm"}
		case <-ctx.Done():
			sleep.Stop()
			return ctx.Err()
		}
	}
}

func (l *Limiter) state(credential string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.keys[credential]
	if !ok {
		st = &keyState{}
		if l.opts.MaxConcurrent > 0 {
			st.sem = make(chan struct{}, l.opts.MaxConcurrent)
		}
		l.keys[credential] = st
	}
	return st
}

// reserve prunes entries older than the window and, if the window has
// room, records now as admitted. Otherwise it returns how long until
// the oldest entry ages out.
func (k *keyState) reserve(now time.Time, limit int) (time.Duration, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cut := now.Add(-Window)
	i := 0
	for i < len(k.admitted) && !k.admitted[i].After(cut) {
		i++
	}
	k.admitted = k.admitted[i:]

	if len(k.admitted) < limit {
		k.admitted = append(k.admitted, now)
		return 0, true
	}
	return k.admitted[0].Add(Window).Sub(now), false
}

// unreserve drops the entry recorded at ts by reserve.
func (k *keyState) unreserve(ts time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := len(k.admitted) - 1; i >= 0; i-- {
		if k.admitted[i].Equal(ts) {
			k.admitted = append(k.admitted[:i], k.admitted[i+1:]...)
			return
		}
	}
}
