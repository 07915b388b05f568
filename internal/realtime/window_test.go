package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arec-energy/pumpstream/internal/models"
)

func TestWindowKeepsMostRecent(t *testing.T) {
	w := NewWindow(20)
	for i := 1; i <= 25; i++ {
		w.Push(float64(i))
	}

	want := make([]float64, 0, 20)
	for i := 6; i <= 25; i++ {
		want = append(want, float64(i))
	}
	assert.Equal(t, want, w.Values())
	assert.Equal(t, 20, w.Len())
	assert.Equal(t, 20, w.Cap())
}

func TestWindowPartiallyFilled(t *testing.T) {
	w := NewWindow(5)
	assert.Empty(t, w.Values())

	w.Push(1)
	w.Push(2)
	assert.Equal(t, []float64{1, 2}, w.Values())
}

func TestWindowValuesIsACopy(t *testing.T) {
	w := NewWindow(3)
	w.Push(1)
	vals := w.Values()
	vals[0] = 42
	assert.Equal(t, []float64{1}, w.Values())
}

func TestWindowDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewWindow(0).Cap())
	assert.Equal(t, DefaultCapacity, NewWindow(-3).Cap())
}

func TestFeedPush(t *testing.T) {
	f := NewFeed(3)
	_, ok := f.Latest()
	assert.False(t, ok)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		f.Push(models.SensorReading{
			Time:            base.Add(time.Duration(i) * time.Second),
			FilteredVoltage: models.Float(220 + float64(i)),
			Power:           models.Float(float64(i * 10)),
		})
	}
	// Reading without power leaves the power window alone.
	f.Push(models.SensorReading{Time: base.Add(10 * time.Second), FilteredVoltage: models.Float(230)})

	assert.Equal(t, []float64{222, 223, 230}, f.Window(Voltage))
	assert.Equal(t, []float64{10, 20, 30}, f.Window(Power))
	assert.Empty(t, f.Window(Current))
	assert.Nil(t, f.Window(Metric("unknown")))

	latest, ok := f.Latest()
	require.True(t, ok)
	assert.True(t, latest.Time.Equal(base.Add(10*time.Second)))

	all := f.Windows()
	assert.Len(t, all, len(Metrics))
}
