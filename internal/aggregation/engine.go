// Package aggregation groups sensor readings into hour, day, ISO week or
// month buckets and computes per-bucket statistics.
//
// Every granularity goes through the same Bucketize function; the
// Granularity value only chooses how a timestamp maps to its bucket.
// Aggregation is computed on read and holds no state, so concurrent
// calls are safe.
package aggregation

import (
	"sort"
	"time"

	"github.com/arec-energy/pumpstream/internal/models"
)

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type accumulator struct {
	start   time.Time
	key     string
	count   int
	current mean
	voltage mean
	power   mean
	flow    float64
	energy  *float64
	first   *models.SensorReading
	last    *models.SensorReading
}

func (a *accumulator) add(r *models.SensorReading) {
	a.count++
	a.current.add(r.FilteredCurrent)
	a.voltage.add(r.FilteredVoltage)
	a.power.add(r.Power)
	if r.Flow != nil {
		a.flow += *r.Flow
	}
	if r.AccumulatedEnergyWh != nil && (a.energy == nil || *r.AccumulatedEnergyWh > *a.energy) {
		v := *r.AccumulatedEnergyWh
		a.energy = &v
	}
	if a.first == nil || r.Time.Before(a.first.Time) {
		a.first = r
	}
	if a.last == nil || !r.Time.Before(a.last.Time) {
		a.last = r
	}
}

func (a *accumulator) bucket() models.AggregateBucket {
	first := *a.first
	last := *a.last
	return models.AggregateBucket{
		BucketKey:     a.key,
		Start:         a.start,
		Count:         a.count,
		AvgCurrent:    a.current.value(),
		AvgVoltage:    a.voltage.value(),
		AvgPower:      a.power.value(),
		TotalFlow:     a.flow,
		TotalEnergyWh: a.energy,
		First:         &first,
		Last:          &last,
	}
}

// Bucketize assigns every reading to a bucket of granularity g in the
// reference zone loc and returns the non-empty buckets in ascending order.
//
// Per bucket it reports the mean of filtered current, filtered voltage and
// power over readings that carry the field, the sum of flow, the largest
// accumulated energy counter value and the first and last reading by time.
func Bucketize(readings []models.SensorReading, g Granularity, loc *time.Location) []models.AggregateBucket {
	if loc == nil {
		loc = time.UTC
	}
	if len(readings) == 0 {
		return []models.AggregateBucket{}
	}

	byStart := make(map[int64]*accumulator)
	for i := range readings {
		r := &readings[i]
		start := g.Truncate(r.Time, loc)
		acc, ok := byStart[start.UnixNano()]
		if !ok {
			acc = &accumulator{start: start, key: g.Key(start, loc)}
			byStart[start.UnixNano()] = acc
		}
		acc.add(r)
	}

	buckets := make([]models.AggregateBucket, 0, len(byStart))
	for _, acc := range byStart {
		buckets = append(buckets, acc.bucket())
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
