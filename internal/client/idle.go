package client

import (
	"sync"
	"time"

	"github.com/spec-kit/grievance-portal/internal/clock"
)

// DefaultIdleTimeout signs a user out after five quiet minutes.
const DefaultIdleTimeout = 5 * time.Minute

// Activity is an interaction that counts as the user being present.
type Activity int

const (
	EventPointerMove Activity = iota
	EventKeyPress
	EventClick
	EventScroll
)

func (a Activity) String() string {
	switch a {
	case EventPointerMove:
		return "pointer_move"
	case EventKeyPress:
		return "key_press"
	case EventClick:
		return "click"
	case EventScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

func (a Activity) qualifies() bool {
	return a >= EventPointerMove && a <= EventScroll
}

// SignOuter ends the current session.
type SignOuter interface {
	SignOut() error
}

// IdleWatcher signs out once no activity was seen for the timeout. It
// fires at most once per Rearm.
type IdleWatcher struct {
	clk      clock.Clock
	timeout  time.Duration
	session  SignOuter
	onExpire func(error)

	mu         sync.Mutex
	timer      *clock.Timer
	generation uint64
	fired      bool
	closed     bool
}

// NewIdleWatcher starts the countdown immediately. onExpire receives the
// SignOut result and may be nil.
func NewIdleWatcher(clk clock.Clock, timeout time.Duration, session SignOuter, onExpire func(error)) *IdleWatcher {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	w := &IdleWatcher{
		clk:      clk,
		timeout:  timeout,
		session:  session,
		onExpire: onExpire,
	}
	w.mu.Lock()
	w.arm()
	w.mu.Unlock()
	return w
}

// arm must be called with mu held.
func (w *IdleWatcher) arm() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	gen := w.generation
	w.timer = w.clk.AfterFunc(w.timeout, func() { w.expire(gen) })
}

// Touch records activity and restarts the countdown.
func (w *IdleWatcher) Touch(a Activity) {
	if !a.qualifies() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.fired {
		return
	}
	w.arm()
}

// Rearm starts a fresh countdown after a new sign-in, including when the
// previous session already expired.
func (w *IdleWatcher) Rearm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.fired = false
	w.arm()
}

func (w *IdleWatcher) expire(gen uint64) {
	w.mu.Lock()
	if w.closed || w.fired || gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.fired = true
	w.mu.Unlock()

	err := w.session.SignOut()
	if w.onExpire != nil {
		w.onExpire(err)
	}
}

// Fired reports whether the watcher signed the user out since the last
// Rearm.
func (w *IdleWatcher) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// Close stops the countdown. No expiry starts after Close returns.
func (w *IdleWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
