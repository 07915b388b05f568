package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arec-energy/pumpstream/internal/aggregation"
	"github.com/arec-energy/pumpstream/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sample(offset time.Duration, power float64) models.SensorReading {
	return models.SensorReading{Time: t0.Add(offset), Power: models.Float(power)}
}

// exerciseRepository runs the contract checks shared by every backend.
func exerciseRepository(t *testing.T, repo TimeSeriesRepository) {
	t.Helper()
	ctx := context.Background()

	// Inserted out of order on purpose.
	for _, r := range []models.SensorReading{
		sample(45*time.Minute, 200),
		sample(15*time.Minute, 100),
		sample(65*time.Minute, 330),
		{
			Time:                t0.Add(70 * time.Minute),
			FilteredCurrent:     models.Float(3.2),
			Flow:                models.Float(12),
			AccumulatedEnergyWh: models.Float(1500),
			FilterInitialized:   models.Bool(true),
		},
	} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Time.Equal(t0.Add(70*time.Minute)))
	assert.True(t, recent[1].Time.Equal(t0.Add(65*time.Minute)))
	require.NotNil(t, recent[0].FilterInitialized)
	assert.True(t, *recent[0].FilterInitialized)
	assert.Nil(t, recent[0].Power)

	none, err := repo.FindRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	// Half-open: the reading at exactly 65m is excluded.
	inRange, err := repo.FindRange(ctx, t0.Add(15*time.Minute), t0.Add(65*time.Minute))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.True(t, inRange[0].Time.Equal(t0.Add(15*time.Minute)))
	assert.True(t, inRange[1].Time.Equal(t0.Add(45*time.Minute)))

	buckets, err := repo.Aggregate(ctx, t0, t0.Add(2*time.Hour), aggregation.Hour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-05-01 10:00", buckets[0].BucketKey)
	assert.Equal(t, 2, buckets[0].Count)
	require.NotNil(t, buckets[0].AvgPower)
	assert.InDelta(t, 150.0, *buckets[0].AvgPower, 1e-9)
	assert.Equal(t, "2024-05-01 11:00", buckets[1].BucketKey)
	assert.Equal(t, 2, buckets[1].Count)
	require.NotNil(t, buckets[1].AvgPower)
	assert.InDelta(t, 330.0, *buckets[1].AvgPower, 1e-9)
	require.NotNil(t, buckets[1].TotalEnergyWh)
	assert.Equal(t, 1500.0, *buckets[1].TotalEnergyWh)

	again, err := repo.Aggregate(ctx, t0, t0.Add(2*time.Hour), aggregation.Hour)
	require.NoError(t, err)
	assert.Equal(t, buckets, again)

	empty, err := repo.Aggregate(ctx, t0.AddDate(1, 0, 0), t0.AddDate(1, 0, 1), aggregation.Day)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryRepo(t *testing.T) {
	exerciseRepository(t, NewMemoryRepo(time.UTC))
}

func TestMemoryRepoClosed(t *testing.T) {
	repo := NewMemoryRepo(nil)
	require.NoError(t, repo.Close())

	err := repo.Insert(context.Background(), sample(0, 1))
	require.Error(t, err)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = repo.FindRecent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryRepoEqualTimestampsKeepArrivalOrder(t *testing.T) {
	repo := NewMemoryRepo(time.UTC)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, sample(0, 1)))
	require.NoError(t, repo.Insert(ctx, sample(0, 2)))

	got, err := repo.FindRange(ctx, t0, t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, *got[0].Power)
	assert.Equal(t, 2.0, *got[1].Power)
	assert.Equal(t, 2, repo.Len())
}

func TestAggregateInvalidGranularity(t *testing.T) {
	repo := NewMemoryRepo(time.UTC)
	_, err := repo.Aggregate(context.Background(), t0, t0.Add(time.Hour), aggregation.Granularity(42))

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "aggregate", se.Op)
}

func TestAggregateSurfacesStoreErrors(t *testing.T) {
	failing := func(ctx context.Context, start, end time.Time) ([]models.SensorReading, error) {
		return nil, &StoreError{Op: "find range", Err: errors.New("connection refused")}
	}

	buckets, err := aggregateRange(context.Background(), failing, t0, t0.Add(time.Hour), aggregation.Hour, time.UTC)
	assert.Nil(t, buckets)
	require.Error(t, err)
	assert.Equal(t, "store find range: connection refused", err.Error())
}
