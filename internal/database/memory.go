package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arec-energy/pumpstream/internal/aggregation"
	"github.com/arec-energy/pumpstream/internal/models"
)

// MemoryRepo keeps readings in a time-ordered slice. It is safe for
// concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	readings []models.SensorReading
	loc      *time.Location
	closed   bool
}

func NewMemoryRepo(loc *time.Location) *MemoryRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryRepo{loc: loc}
}

func (m *MemoryRepo) Insert(ctx context.Context, reading models.SensorReading) error {
	if err := ctx.Err(); err != nil {
		return storeErr("insert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storeErr("insert", ErrClosed)
	}

	// Readings with equal timestamps keep arrival order.
	idx := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].Time.After(reading.Time)
	})
	m.readings = append(m.readings, models.SensorReading{})
	copy(m.readings[idx+1:], m.readings[idx:])
	m.readings[idx] = reading
	return nil
}

func (m *MemoryRepo) FindRecent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find recent", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, storeErr("find recent", ErrClosed)
	}

	if limit > len(m.readings) {
		limit = len(m.readings)
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]models.SensorReading, 0, limit)
	for i := len(m.readings) - 1; i >= len(m.readings)-limit; i-- {
		out = append(out, m.readings[i])
	}
	return out, nil
}

func (m *MemoryRepo) FindRange(ctx context.Context, start, end time.Time) ([]models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find range", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, storeErr("find range", ErrClosed)
	}

	lo := sort.Search(len(m.readings), func(i int) bool {
		return !m.readings[i].Time.Before(start)
	})
	hi := sort.Search(len(m.readings), func(i int) bool {
		return !m.readings[i].Time.Before(end)
	})
	if hi < lo {
		hi = lo
	}
	out := make([]models.SensorReading, hi-lo)
	copy(out, m.readings[lo:hi])
	return out, nil
}

func (m *MemoryRepo) Aggregate(
	ctx context.Context,
	start, end time.Time,
	granularity aggregation.Granularity,
) ([]models.AggregateBucket, error) {
	return aggregateRange(ctx, m.FindRange, start, end, granularity, m.loc)
}

// Len returns the number of stored readings.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings)
}

func (m *MemoryRepo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ TimeSeriesRepository = (*MemoryRepo)(nil)
