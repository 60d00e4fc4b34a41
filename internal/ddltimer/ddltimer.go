/*
Package ddltimer provides [DeadlineTimer], the primitive gatekeeperd uses
everywhere a connection phase needs a bound: negotiation (ingress/ingress.go's
withDeadline), egress dial (wrapped in context.WithTimeout instead, since
Dialer.Connect already takes a context), and the idle-relay watchdog in
ingress/idle.go, which pushes the deadline out on every byte moved instead of
setting it once.

	t := ddltimer.New()
	defer t.Stop()
	t.SetDeadline(time.Now().Add(30 * time.Second))
	<-t.Timeout()
	// SetDeadline may be called again from another goroutine while
	// something else is blocked on Timeout(), which is what lets
	// idleWatchedConn push the deadline out on every Read/Write.
*/
package ddltimer

import (
	"sync"
	"time"
)

// DeadlineTimer is a reusable alternative to [time.After]/[time.Timer]: the
// deadline can be moved forward or backward after creation, and any number
// of goroutines can listen on Timeout() at once.
//
// DeadlineTimer is safe for concurrent use by multiple goroutines.
type DeadlineTimer struct {
	mu sync.Mutex

	ddl time.Time
	t   *time.Timer
	c   chan struct{}
}

// New returns a DeadlineTimer with no deadline set; Timeout() blocks forever
// until SetDeadline is called.
func New() *DeadlineTimer {
	return &DeadlineTimer{
		c: make(chan struct{}),
	}
}

// Timeout returns a channel that closes once the most recently set deadline
// passes. The same channel may be shared by multiple callers.
func (d *DeadlineTimer) Timeout() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.c
}

// SetDeadline moves the expiry to t, replacing whatever deadline (if any)
// was set before. A zero Time disables the timeout, equivalent to Stop.
func (d *DeadlineTimer) SetDeadline(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// If the pending AfterFunc already fired, its close(ch) landed on the
	// current channel; swap in a fresh one so later Timeout() callers get an
	// unclosed channel for the new deadline instead of the one that fired.
	if d.t != nil && !d.t.Stop() {
		d.c = make(chan struct{})
	}
	d.t = nil

	// A prior deadline may have already elapsed and closed d.c (e.g. the
	// zero-timeout path below). Moving the deadline back out needs a
	// fresh, unclosed channel for the new expiry to close.
	select {
	case <-d.c:
		d.c = make(chan struct{})
	default:
	}

	d.ddl = t

	if t.IsZero() {
		return
	}

	remaining := time.Until(t)
	if remaining <= 0 {
		close(d.c)
		return
	}

	// Capture the current channel: AfterFunc's closure must close the
	// channel that was current when it was scheduled, not whatever d.c
	// happens to hold when it fires, in case SetDeadline runs again first.
	ch := d.c
	d.t = time.AfterFunc(remaining, func() {
		close(ch)
	})
}

// Stop disables the timeout, equivalent to SetDeadline(time.Time{}).
func (d *DeadlineTimer) Stop() {
	d.SetDeadline(time.Time{})
}

// Deadline returns the currently configured expiry, or the zero Time if no
// timeout is set.
func (d *DeadlineTimer) Deadline() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ddl
}
