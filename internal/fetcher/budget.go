package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"reposcope/internal/logging"
)

// defaultBudget matches the authenticated REST allowance until the first
// response reports the real numbers.
const defaultBudget = 5000

// RequestBudget tracks the GitHub rate limit as reported by response
// headers and blocks callers when it is exhausted or a Retry-After cooldown
// is active.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	now       func() time.Time
	probed    bool
	cooldown  time.Time
	notifyCh  chan struct{}
	log       *slog.Logger
}

// BudgetStatus is a snapshot of the budget for diagnostics.
type BudgetStatus struct {
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
	Cooldown  time.Time `json:"cooldown,omitempty"`
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: defaultBudget,
		reset:     time.Now().Add(1 * time.Hour),
		now:       time.Now,
		notifyCh:  make(chan struct{}),
		log:       logging.New("budget"),
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *RequestBudget) Status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetStatus{Remaining: b.remaining, Reset: b.reset, Cooldown: b.cooldown}
}

// Acquire takes n request slots, waiting for cooldowns and resets.
func (b *RequestBudget) Acquire(ctx context.Context, n int) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if n <= 0 {
		return fmt.Errorf("Acquire: n must be > 0 (got %d)", n)
	}
	if b == nil {
		return fmt.Errorf("Acquire: nil RequestBudget")
	}
	if b.now == nil || b.notifyCh == nil {
		return fmt.Errorf("Acquire: RequestBudget not initialized (use NewRequestBudget)")
	}

	for i := 0; i < n; i++ {
		if err := b.acquireOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *RequestBudget) acquireOne(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.now()
		ch := b.notifyCh

		if now.Before(b.cooldown) {
			until := b.cooldown
			b.mu.Unlock()
			if err := waitUntil(ctx, until.Sub(now), ch); err != nil {
				return err
			}
			continue
		}

		if b.remaining > 0 {
			b.remaining--
			b.mu.Unlock()
			return nil
		}

		// Past reset without a fresh reading: let exactly one probe through
		// and park everyone else until UpdateFromResponse.
		if !now.Before(b.reset) {
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}

		reset := b.reset
		b.mu.Unlock()
		if err := waitUntil(ctx, reset.Sub(now), ch); err != nil {
			return err
		}
	}
}

// waitUntil blocks for d, until ch is closed, or until ctx ends.
func waitUntil(ctx context.Context, d time.Duration, ch <-chan struct{}) error {
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	}
}

func (b *RequestBudget) signalLocked() {
	if b.notifyCh != nil {
		close(b.notifyCh)
	}
	b.notifyCh = make(chan struct{})
}

// UpdateFromResponse reads Retry-After and X-RateLimit-* headers.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if resp == nil || b == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		until := b.now().Add(time.Duration(seconds) * time.Second)
		if until.After(b.cooldown) {
			b.cooldown = until
			changed = true
			if b.log != nil {
				b.log.Warn("github asked to back off", "retry_after_seconds", seconds)
			}
		}
	}

	if val, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && val >= 0 && b.remaining != val {
		b.remaining = val
		changed = true
	}

	if val, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && val > 0 {
		newReset := time.Unix(val, 0)
		if !b.reset.Equal(newReset) {
			b.reset = newReset
			changed = true
		}
	}

	if changed {
		b.probed = false
		b.signalLocked()
	}
}
