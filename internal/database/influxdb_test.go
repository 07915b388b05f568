package database

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arec-energy/pumpstream/internal/models"
)

// pointValues encodes r the way Insert does and returns the field values
// a pivoted query would hand back.
func pointValues(r models.SensorReading) map[string]interface{} {
	p := write.NewPoint(defaultMeasurement, nil, readingFields(r), r.Time)
	values := map[string]interface{}{}
	for _, f := range p.FieldList() {
		values[f.Key] = f.Value
	}
	return values
}

func TestInfluxFieldMapping(t *testing.T) {
	full := models.SensorReading{
		Time:                t0,
		ADCCurrent:          models.Float(512),
		ADCVoltage:          models.Float(780),
		RawCurrent:          models.Float(2.5),
		RawVoltage:          models.Float(229.1),
		FilteredCurrent:     models.Float(2.4),
		FilteredVoltage:     models.Float(230),
		Flow:                models.Float(12.75),
		Power:               models.Float(552),
		AccumulatedEnergyWh: models.Float(1500),
		TotalWaterVolume:    models.Float(88.5),
		FilterInitialized:   models.Bool(true),
	}

	tests := []struct {
		name    string
		reading models.SensorReading
		fields  int
	}{
		{name: "all fields present", reading: full, fields: 12},
		{name: "only power", reading: models.SensorReading{Time: t0, Power: models.Float(120.5)}, fields: 2},
		{name: "no values", reading: models.SensorReading{Time: t0}, fields: 1},
		{name: "filter flag false", reading: models.SensorReading{Time: t0, FilterInitialized: models.Bool(false)}, fields: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := pointValues(tt.reading)
			assert.Len(t, values, tt.fields)
			assert.Equal(t, int64(1), values["samples"])

			got := recordReading(tt.reading.Time.In(time.FixedZone("PHT", 8*60*60)), values)
			assert.Equal(t, tt.reading, got)
		})
	}
}

func TestFluxFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want *float64
	}{
		{name: "float64", in: 3.25, want: models.Float(3.25)},
		{name: "int64", in: int64(42), want: models.Float(42)},
		{name: "uint64", in: uint64(7), want: models.Float(7)},
		{name: "absent", in: nil, want: nil},
		{name: "string", in: "3.25", want: nil},
		{name: "bool", in: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fluxFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestRecordReading_IntegerColumns(t *testing.T) {
	// Values written by other tools may come back as integer columns.
	got := recordReading(t0, map[string]interface{}{
		"power":                 int64(550),
		"accumulated_energy_wh": uint64(1200),
		"flow":                  nil,
		"filter_initialized":    "yes",
	})

	require.NotNil(t, got.Power)
	assert.Equal(t, 550.0, *got.Power)
	require.NotNil(t, got.AccumulatedEnergyWh)
	assert.Equal(t, 1200.0, *got.AccumulatedEnergyWh)
	assert.Nil(t, got.Flow)
	assert.Nil(t, got.FilterInitialized)
	assert.Nil(t, got.FilteredVoltage)
}
