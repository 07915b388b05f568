package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var morning = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func TestTrackerRebasesAgainstFirstValue(t *testing.T) {
	tr := NewTracker(time.UTC)
	assert.Equal(t, Unseeded, tr.State())
	assert.Zero(t, tr.Delta())

	var deltas []float64
	for i, v := range []float64{1000, 1050, 1200} {
		deltas = append(deltas, tr.Observe(v, morning.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, []float64{0, 50, 200}, deltas)
	assert.Equal(t, Tracking, tr.State())

	base, ok := tr.Base()
	require.True(t, ok)
	assert.Equal(t, 1000.0, base)
}

func TestTrackerClampsOnRewind(t *testing.T) {
	tr := NewTracker(time.UTC)
	for i, v := range []float64{1000, 1050, 1200} {
		tr.Observe(v, morning.Add(time.Duration(i)*time.Minute))
	}

	// Controller rebooted and its counter restarted below the base.
	assert.Equal(t, 200.0, tr.Observe(900, morning.Add(5*time.Minute)))
	assert.Equal(t, 200.0, tr.Observe(10, morning.Add(6*time.Minute)))
	// Rewound but still above base: still never lower than the prior maximum.
	assert.Equal(t, 200.0, tr.Observe(1100, morning.Add(7*time.Minute)))
	// Past the previous high-water mark the delta grows again.
	assert.Equal(t, 350.0, tr.Observe(1350, morning.Add(8*time.Minute)))

	assert.Equal(t, 2, tr.Resets())
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, 1350.0, last)
}

func TestTrackerRollsOverAtLocalMidnight(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	tr := NewTracker(manila)

	// 2024-05-01 10:00 local.
	tr.Observe(1000, time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC))
	tr.Observe(1500, time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, 500.0, tr.Delta())

	// 2024-05-01 23:59 local: same day.
	assert.False(t, tr.CheckRollover(time.Date(2024, 5, 1, 15, 59, 0, 0, time.UTC)))
	assert.Equal(t, Tracking, tr.State())

	// 2024-05-02 00:00 local.
	assert.True(t, tr.CheckRollover(time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)))
	assert.Equal(t, Unseeded, tr.State())
	assert.Zero(t, tr.Delta())
	_, ok := tr.Base()
	assert.False(t, ok)

	assert.Equal(t, 0.0, tr.Observe(1600, time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC)))
	assert.Equal(t, 40.0, tr.Observe(1640, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)))
}

func TestTrackerRollsOverOnFirstEventAfterBoundary(t *testing.T) {
	tr := NewTracker(time.UTC)
	tr.Observe(1000, morning)
	tr.Observe(1300, morning.Add(time.Hour))

	// No periodic check ran; the next event itself crosses midnight.
	next := morning.Add(24 * time.Hour)
	assert.Equal(t, 0.0, tr.Observe(1310, next))
	base, ok := tr.Base()
	require.True(t, ok)
	assert.Equal(t, 1310.0, base)
}

func TestTrackerRolloverWhileUnseeded(t *testing.T) {
	tr := NewTracker(time.UTC)
	assert.False(t, tr.CheckRollover(morning.Add(48*time.Hour)))
	assert.Equal(t, Unseeded, tr.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unseeded", Unseeded.String())
	assert.Equal(t, "tracking", Tracking.String())
}
