// Package realtime keeps short sliding windows of the most recent sensor
// values for live display. It holds no persisted state and is owned by a
// single session.
package realtime

import (
	"github.com/arec-energy/pumpstream/internal/models"
)

// Metric names a tracked series.
type Metric string

const (
	Voltage Metric = "voltage"
	Current Metric = "current"
	Power   Metric = "power"
	Flow    Metric = "flow"
)

// Metrics lists the tracked series in display order.
var Metrics = []Metric{Voltage, Current, Power, Flow}

// Feed maintains one Window per metric plus the last reading seen.
type Feed struct {
	windows map[Metric]*Window
	latest  *models.SensorReading
}

func NewFeed(capacity int) *Feed {
	f := &Feed{windows: make(map[Metric]*Window, len(Metrics))}
	for _, m := range Metrics {
		f.windows[m] = NewWindow(capacity)
	}
	return f
}

// Push records r. Metrics absent from the reading are left untouched.
func (f *Feed) Push(r models.SensorReading) {
	f.latest = &r
	for _, m := range Metrics {
		if v := value(r, m); v != nil {
			f.windows[m].Push(*v)
		}
	}
}

// Window returns the values of m, most recent last.
func (f *Feed) Window(m Metric) []float64 {
	w, ok := f.windows[m]
	if !ok {
		return nil
	}
	return w.Values()
}

// Windows returns a copy of every window keyed by metric.
func (f *Feed) Windows() map[Metric][]float64 {
	out := make(map[Metric][]float64, len(f.windows))
	for m, w := range f.windows {
		out[m] = w.Values()
	}
	return out
}

// Latest returns the last reading pushed, if any.
func (f *Feed) Latest() (models.SensorReading, bool) {
	if f.latest == nil {
		return models.SensorReading{}, false
	}
	return *f.latest, true
}

func value(r models.SensorReading, m Metric) *float64 {
	switch m {
	case Voltage:
		return r.FilteredVoltage
	case Current:
		return r.FilteredCurrent
	case Power:
		return r.Power
	case Flow:
		return r.Flow
	}
	return nil
}
