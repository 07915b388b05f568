// Package counter converts absolute cumulative counters, such as the
// controller's accumulated energy or total water volume, into values
// scoped to the current local calendar day.
//
// A Tracker is owned by a single session and is not safe for concurrent
// use.
package counter

import (
	"fmt"
	"time"
)

// State of a Tracker.
type State int

const (
	Unseeded State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case Unseeded:
		return "unseeded"
	case Tracking:
		return "tracking"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Tracker rebases one cumulative counter against the value it had at the
// start of the period.
//
// When the counter rewinds (the controller rebooted) the reported delta is
// held at the largest delta already seen in the period; it never goes
// down and never goes negative.
type Tracker struct {
	loc    *time.Location
	state  State
	period time.Time
	base   float64
	last   float64
	delta  float64
	resets int
}

// NewTracker returns an unseeded tracker whose period boundaries are local
// midnights in loc.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{loc: loc}
}

// Observe feeds one absolute counter value measured at `at` and returns the
// delta since the start of the period.
func (t *Tracker) Observe(value float64, at time.Time) float64 {
	t.CheckRollover(at)

	if t.state == Unseeded {
		t.state = Tracking
		t.period = t.day(at)
		t.base = value
		t.last = value
		t.delta = 0
		return t.delta
	}

	if value < t.last {
		t.resets++
	}
	if value >= t.base && value-t.base > t.delta {
		t.delta = value - t.base
	}
	t.last = value
	return t.delta
}

// CheckRollover resets the tracker when now falls on a later local day
// than the period it was seeded in. It reports whether a reset happened.
func (t *Tracker) CheckRollover(now time.Time) bool {
	if t.state != Tracking {
		return false
	}
	if !t.day(now).After(t.period) {
		return false
	}
	t.Reset()
	return true
}

// Reset forgets the base and returns to Unseeded.
func (t *Tracker) Reset() {
	t.state = Unseeded
	t.period = time.Time{}
	t.base = 0
	t.last = 0
	t.delta = 0
	t.resets = 0
}

// Delta is the value since the start of the period; 0 while unseeded.
func (t *Tracker) Delta() float64 {
	return t.delta
}

func (t *Tracker) State() State {
	return t.state
}

// Base returns the counter value at the start of the period.
func (t *Tracker) Base() (float64, bool) {
	return t.base, t.state == Tracking
}

// Last returns the most recent counter value observed.
func (t *Tracker) Last() (float64, bool) {
	return t.last, t.state == Tracking
}

// Resets counts the counter rewinds observed in the current period.
func (t *Tracker) Resets() int {
	return t.resets
}

func (t *Tracker) day(ts time.Time) time.Time {
	ts = ts.In(t.loc)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, t.loc)
}
