package database

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/arec-energy/pumpstream/internal/aggregation"
	"github.com/arec-energy/pumpstream/internal/models"
)

const defaultMeasurement = "pump_readings"

// InfluxOptions configures an InfluxRepo.
type InfluxOptions struct {
	URL         string
	Org         string
	Token       string
	Bucket      string
	Measurement string
	Location    *time.Location
}

// InfluxRepo implements TimeSeriesRepository on an InfluxDB v2 bucket. Each
// reading becomes one point whose fields are the reading's present values.
type InfluxRepo struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	loc         *time.Location
}

// NewInfluxRepo connects to InfluxDB and verifies the server is healthy.
func NewInfluxRepo(ctx context.Context, opts InfluxOptions) (*InfluxRepo, error) {
	client := influxdb2.NewClient(opts.URL, opts.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, storeErr("connect", fmt.Errorf("influxdb health check: %w", err))
	}

	measurement := opts.Measurement
	if measurement == "" {
		measurement = defaultMeasurement
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &InfluxRepo{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(opts.Org, opts.Bucket),
		queryAPI:    client.QueryAPI(opts.Org),
		bucket:      opts.Bucket,
		measurement: measurement,
		loc:         loc,
	}, nil
}

// Insert writes the reading synchronously so failures reach the caller.
func (c *InfluxRepo) Insert(ctx context.Context, reading models.SensorReading) error {
	point := write.NewPoint(c.measurement, nil, readingFields(reading), reading.Time)
	return storeErr("insert", c.writeAPI.WritePoint(ctx, point))
}

func (c *InfluxRepo) FindRecent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		return []models.SensorReading{}, nil
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`, c.bucket, c.measurement, limit)

	out, err := c.query(ctx, flux)
	return out, storeErr("find recent", err)
}

func (c *InfluxRepo) FindRange(ctx context.Context, start, end time.Time) ([]models.SensorReading, error) {
	if !start.Before(end) {
		return []models.SensorReading{}, nil
	}
	// range() is start-inclusive and stop-exclusive.
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"])`,
		c.bucket,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		c.measurement,
	)

	out, err := c.query(ctx, flux)
	return out, storeErr("find range", err)
}

func (c *InfluxRepo) Aggregate(
	ctx context.Context,
	start, end time.Time,
	granularity aggregation.Granularity,
) ([]models.AggregateBucket, error) {
	return aggregateRange(ctx, c.FindRange, start, end, granularity, c.loc)
}

func (c *InfluxRepo) Close() error {
	c.client.Close()
	return nil
}

func (c *InfluxRepo) query(ctx context.Context, flux string) ([]models.SensorReading, error) {
	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	readings := []models.SensorReading{}
	for result.Next() {
		rec := result.Record()
		readings = append(readings, recordReading(rec.Time(), rec.Values()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("flux query: %w", result.Err())
	}
	return readings, nil
}

// readingFields maps the present values of r to point fields. InfluxDB
// rejects points without fields, so a sample counter is always written.
func readingFields(r models.SensorReading) map[string]interface{} {
	fields := map[string]interface{}{"samples": int64(1)}
	put := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	put("adc_current", r.ADCCurrent)
	put("adc_voltage", r.ADCVoltage)
	put("raw_current", r.RawCurrent)
	put("raw_voltage", r.RawVoltage)
	put("filtered_current", r.FilteredCurrent)
	put("filtered_voltage", r.FilteredVoltage)
	put("flow", r.Flow)
	put("power", r.Power)
	put("accumulated_energy_wh", r.AccumulatedEnergyWh)
	put("total_water_volume", r.TotalWaterVolume)
	if r.FilterInitialized != nil {
		fields["filter_initialized"] = *r.FilterInitialized
	}
	return fields
}

// recordReading rebuilds a reading from one pivoted Flux row. Columns that
// are absent or not numeric leave the field nil.
func recordReading(at time.Time, values map[string]interface{}) models.SensorReading {
	r := models.SensorReading{
		Time:                at.UTC(),
		ADCCurrent:          fluxFloat(values["adc_current"]),
		ADCVoltage:          fluxFloat(values["adc_voltage"]),
		RawCurrent:          fluxFloat(values["raw_current"]),
		RawVoltage:          fluxFloat(values["raw_voltage"]),
		FilteredCurrent:     fluxFloat(values["filtered_current"]),
		FilteredVoltage:     fluxFloat(values["filtered_voltage"]),
		Flow:                fluxFloat(values["flow"]),
		Power:               fluxFloat(values["power"]),
		AccumulatedEnergyWh: fluxFloat(values["accumulated_energy_wh"]),
		TotalWaterVolume:    fluxFloat(values["total_water_volume"]),
	}
	if b, ok := values["filter_initialized"].(bool); ok {
		r.FilterInitialized = &b
	}
	return r
}

func fluxFloat(v interface{}) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	default:
		return nil
	}
	return &f
}

var _ TimeSeriesRepository = (*InfluxRepo)(nil)
