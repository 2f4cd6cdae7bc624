// Package clock implements the per-room wall-clock countdown: main time
// plus byoyomi, ticking once per second, deriving its authoritative
// value from elapsed wall-clock time rather than from tick accumulation
// so that jitter or a missed tick never causes drift.
//
// The ticking goroutine uses one time.Ticker per active countdown,
// stopped via a dedicated channel on shutdown.
package clock

import (
	"sync"
	"time"

	"shogi-server/internal/shogi"
)

const tickPeriod = time.Second

// TickSink receives Clock callbacks. Both methods run on the Clock's own
// ticking goroutine; implementations (Room) must serialize their own
// mutation of shared state against their single-writer discipline rather
// than assume any particular caller goroutine.
type TickSink interface {
	OnTick(side shogi.Side, remainingMain, remainingByoyomi int)
	OnTimeout(side shogi.Side)
}

// Clock tracks committed per-side main time and byoyomi in whole seconds,
// plus monotone total-consumed milliseconds, and runs at most one active
// countdown at a time.
type Clock struct {
	mu sync.Mutex

	sink TickSink

	byoyomiSetting int
	times          [2]int
	byoyomi        [2]int
	totalConsumed  [2]int64

	running   bool
	side      shogi.Side
	startedAt time.Time
	stopTick  chan struct{}
}

// New builds a Clock with both sides' main time and byoyomi set from the
// room's settings.
func New(sink TickSink, initialSeconds, byoyomiSeconds int) *Clock {
	c := &Clock{sink: sink}
	c.Reset(initialSeconds, byoyomiSeconds)
	return c
}

// Reset reinitializes committed state for a fresh game (the waiting ->
// playing transition). The caller must ensure the clock is stopped
// first; Reset does not itself cancel a running tick.
func (c *Clock) Reset(initialSeconds, byoyomiSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byoyomiSetting = byoyomiSeconds
	c.times[shogi.Sente] = initialSeconds
	c.times[shogi.Gote] = initialSeconds
	c.byoyomi[shogi.Sente] = byoyomiSeconds
	c.byoyomi[shogi.Gote] = byoyomiSeconds
	c.totalConsumed[shogi.Sente] = 0
	c.totalConsumed[shogi.Gote] = 0
}

// RefreshByoyomi resets side's committed byoyomi to the configured
// amount, as happens after every completed move while in byoyomi.
func (c *Clock) RefreshByoyomi(side shogi.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byoyomi[side] = c.byoyomiSetting
}

// Snapshot returns the committed times, byoyomi, and total-consumed
// milliseconds for both sides, used for outbound time_update payloads
// built outside a tick, and for persistence.
func (c *Clock) Snapshot() (times, byoyomi [2]int, totalConsumedMs [2]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.times, c.byoyomi, c.totalConsumed
}

// Running reports whether a countdown is currently active, and for which
// side.
func (c *Clock) Running() (side shogi.Side, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.side, c.running
}

// Start records lastMoveTimestamp = now for side and begins a periodic
// 1-second tick. If a countdown was already running (for either side) it
// is stopped first, without committing; callers that want the prior
// side's elapsed time committed must call Stop explicitly beforehand.
func (c *Clock) Start(side shogi.Side) {
	c.mu.Lock()
	if c.running {
		close(c.stopTick)
		c.running = false
	}
	c.side = side
	c.startedAt = time.Now()
	c.running = true
	stopTick := make(chan struct{})
	c.stopTick = stopTick
	c.mu.Unlock()

	go c.run(side, stopTick)
}

// Stop cancels the pending tick. If commit is true, the elapsed time
// since lastMoveTimestamp is folded into the committed times/byoyomi and
// totalConsumedTimes for the side that was running.
func (c *Clock) Stop(commit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(commit)
}

func (c *Clock) stopLocked(commit bool) {
	if !c.running {
		return
	}
	if commit {
		c.commitLocked(c.side, time.Since(c.startedAt))
	}
	close(c.stopTick)
	c.running = false
}

// commitLocked folds elapsed wall-clock time into side's committed state.
// Main time is drawn down first; once exhausted, further elapsed time
// draws down byoyomi. Must be called with mu held.
func (c *Clock) commitLocked(side shogi.Side, elapsed time.Duration) {
	elapsedMs := elapsed.Milliseconds()
	c.totalConsumed[side] += elapsedMs

	elapsedSec := int(elapsed / time.Second)
	if c.times[side] > 0 {
		if elapsedSec <= c.times[side] {
			c.times[side] -= elapsedSec
			return
		}
		overflow := elapsedSec - c.times[side]
		c.times[side] = 0
		c.byoyomi[side] -= overflow
		return
	}
	c.byoyomi[side] -= elapsedSec
}

func (c *Clock) run(side shogi.Side, stopTick chan struct{}) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stopTick:
			return
		case now := <-ticker.C:
			if c.tick(side, now) {
				return
			}
		}
	}
}

// tick computes the displayed remaining time for side as of now, without
// mutating committed state beyond a timeout stop, and reports it to the
// sink. It returns true once the goroutine should exit: either because
// the clock moved on to another side/was stopped concurrently, or
// because side timed out.
func (c *Clock) tick(side shogi.Side, now time.Time) bool {
	c.mu.Lock()
	if !c.running || c.side != side {
		c.mu.Unlock()
		return true
	}
	elapsed := int(now.Sub(c.startedAt) / time.Second)

	mainRemaining := c.times[side] - elapsed
	var displayMain, displayByoyomi int
	exhausted := mainRemaining < 0
	if !exhausted {
		displayMain = mainRemaining
		displayByoyomi = c.byoyomi[side]
	} else {
		displayMain = 0
		overElapsed := -mainRemaining
		displayByoyomi = c.byoyomi[side] - overElapsed
	}
	timedOut := exhausted && displayByoyomi < 0
	// The stop, if any, happens inside the same lock acquisition that
	// produced timedOut, so nothing can Start a new countdown for this
	// side (or any side) between the decision and the stop: a stale tick
	// can never cut short a countdown it didn't itself decide to end.
	if timedOut {
		c.stopLocked(false)
	}
	c.mu.Unlock()

	if timedOut {
		c.sink.OnTimeout(side)
		return true
	}
	c.sink.OnTick(side, displayMain, displayByoyomi)
	return false
}
