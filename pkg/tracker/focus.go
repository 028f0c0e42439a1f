package tracker

import (
	"math"
	"sync"
	"time"
)

// idleAdjustment is subtracted from a "focused but idle" notification
// timestamp: idle detection itself has latency, so idleness is assumed to
// have started a minute before the event fired.
const idleAdjustment = time.Minute

// FocusTracker accumulates focused-and-active wall-clock time across
// discontiguous intervals, independent of heartbeat cadence. At most one
// interval is open at a time; closed intervals are folded into a running
// total and discarded.
//
// A liveness watchdog force-closes the open interval when no keep-alive
// arrives within the idle window. The interval is closed retroactively at
// the last keep-alive timestamp, not at expiry time: once the editor stops
// reporting, focus time stops being credited from the last known-good
// instant.
type FocusTracker struct {
	mu sync.Mutex

	totalSeconds  int
	intervalStart time.Time // zero when no interval is open
	lastKeepAlive time.Time

	idleTimeout time.Duration
	idleTimer   *time.Timer

	now func() time.Time
}

// NewFocusTracker creates a focus time accumulator.
//
// Parameters:
//   - idleTimeout: time without keep-alives before the open interval is
//     force-closed (default: 2 minutes)
func NewFocusTracker(idleTimeout time.Duration) *FocusTracker {
	if idleTimeout == 0 {
		idleTimeout = 2 * time.Minute
	}

	return &FocusTracker{
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// ProcessWindowState applies a window state transition.
//
// Three mutually exclusive cases, in this precedence:
//  1. focused && active: start (or continue) an interval
//  2. !focused: close the open interval at the event timestamp
//  3. focused && !active: close the interval at timestamp minus the idle
//     adjustment
func (f *FocusTracker) ProcessWindowState(ev WindowStateEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := ev.WindowState
	switch {
	case state.Focused && state.Active:
		f.startTracking(ev.Timestamp)
	case !state.Focused:
		f.stopTracking(ev.Timestamp)
	default: // focused but idle
		f.stopTracking(ev.Timestamp.Add(-idleAdjustment))
	}
}

// KeepAlive records editor liveness and re-arms the idle watchdog.
func (f *FocusTracker) KeepAlive(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastKeepAlive = t
	f.scheduleIdleCheck()
}

// TotalMinutes returns the accumulated focus time rounded to the nearest
// minute. An open interval contributes its duration up to the last
// keep-alive.
func (f *FocusTracker) TotalMinutes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	seconds := f.totalSeconds

	if !f.intervalStart.IsZero() && !f.lastKeepAlive.IsZero() {
		current := int(f.lastKeepAlive.Sub(f.intervalStart) / time.Second)
		if current > 0 {
			seconds += current
		}
	}

	return int(math.Round(float64(seconds) / 60))
}

// Reset zeroes the total and opens a fresh interval starting now. Called
// when a session closes so the next session starts with a clean slate.
func (f *FocusTracker) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearIdleTimer()

	f.totalSeconds = 0

	now := f.now()
	f.intervalStart = now
	f.lastKeepAlive = now

	f.scheduleIdleCheck()
}

// Stop cancels the idle watchdog. The tracker may still be read afterwards.
func (f *FocusTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearIdleTimer()
}

// startTracking opens an interval at t. No-op if one is already open.
// Caller must hold f.mu.
func (f *FocusTracker) startTracking(t time.Time) {
	if !f.intervalStart.IsZero() {
		return
	}

	f.intervalStart = t
	f.lastKeepAlive = t

	f.scheduleIdleCheck()
}

// stopTracking closes the open interval at t, folding whole elapsed
// seconds into the running total. No-op if none is open.
// Caller must hold f.mu.
func (f *FocusTracker) stopTracking(t time.Time) {
	if f.intervalStart.IsZero() {
		return
	}

	f.clearIdleTimer()

	seconds := int(t.Sub(f.intervalStart) / time.Second)
	if seconds > 0 {
		f.totalSeconds += seconds
	}

	f.intervalStart = time.Time{}
}

// scheduleIdleCheck re-arms the liveness watchdog, replacing any pending
// timer. Caller must hold f.mu.
func (f *FocusTracker) scheduleIdleCheck() {
	if f.idleTimer != nil {
		f.idleTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(f.idleTimeout, func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		// A newer keep-alive may have re-armed the watchdog while this
		// callback waited for the lock; only the current timer may fire.
		if f.idleTimer != timer {
			return
		}

		if !f.lastKeepAlive.IsZero() {
			f.stopTracking(f.lastKeepAlive)
		}
	})
	f.idleTimer = timer
}

// clearIdleTimer cancels the watchdog if armed. Caller must hold f.mu.
func (f *FocusTracker) clearIdleTimer() {
	if f.idleTimer != nil {
		f.idleTimer.Stop()
		f.idleTimer = nil
	}
}
