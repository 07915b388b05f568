package decoder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	payload := `{
		"time": "2024-05-01T10:15:00Z",
		"adc_current": 512,
		"adc_voltage": 730,
		"raw_current": 3.1,
		"raw_voltage": 221.4,
		"filtered_current": 3.05,
		"filtered_voltage": 220.9,
		"flow": 12.5,
		"power": 673.2,
		"accumulated_energy_wh": 1050,
		"total_water_volume": "4200.5",
		"filter_initialized": true
	}`

	r, err := Decode([]byte(payload))
	require.NoError(t, err)

	assert.True(t, r.Time.Equal(time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)))
	require.NotNil(t, r.FilteredCurrent)
	assert.Equal(t, 3.05, *r.FilteredCurrent)
	require.NotNil(t, r.Power)
	assert.Equal(t, 673.2, *r.Power)
	require.NotNil(t, r.AccumulatedEnergyWh)
	assert.Equal(t, 1050.0, *r.AccumulatedEnergyWh)
	require.NotNil(t, r.TotalWaterVolume)
	assert.Equal(t, 4200.5, *r.TotalWaterVolume)
	require.NotNil(t, r.FilterInitialized)
	assert.True(t, *r.FilterInitialized)
}

func TestDecodeTimeFormats(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
	}{
		{"rfc3339", `{"time":"2024-05-01T10:15:00Z"}`},
		{"rfc3339 offset", `{"time":"2024-05-01T18:15:00+08:00"}`},
		{"rfc3339 nano", `{"time":"2024-05-01T10:15:00.000Z"}`},
		{"space separated", `{"time":"2024-05-01 10:15:00"}`},
		{"unix seconds", `{"time":1714558500}`},
		{"unix millis", `{"time":1714558500000}`},
		{"unix seconds string", `{"time":"1714558500"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.True(t, r.Time.Equal(want), "got %s", r.Time)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"not json", `time=now`, ErrNotObject},
		{"json array", `[1,2,3]`, ErrNotObject},
		{"json null", `null`, ErrNotObject},
		{"empty", ``, ErrNotObject},
		{"missing time", `{"power": 10}`, ErrMissingTime},
		{"null time", `{"time": null, "power": 10}`, ErrMissingTime},
		{"garbage time", `{"time": "yesterday"}`, ErrBadTime},
		{"bool time", `{"time": true}`, ErrBadTime},
		{"trailing garbage", `{"time":"2024-05-01T10:15:00Z"} trailing garbage`, ErrNotObject},
		{"two objects", `{"time":"2024-05-01T10:15:00Z"}{"time":"2024-05-01T10:15:01Z"}`, ErrNotObject},
		{"time overflows int64", `{"time": 1e30}`, ErrBadTime},
		{"time beyond year 9999", `{"time": 9000000000000000000}`, ErrBadTime},
		{"numeric string beyond year 9999", `{"time": "-9000000000000000000"}`, ErrBadTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	r, err := Decode([]byte("{\"time\":\"2024-05-01T10:15:00Z\",\"power\":5}\n  "))
	require.NoError(t, err)
	assert.Equal(t, 5.0, *r.Power)
}

func TestDecodeAbsentFieldsStayAbsent(t *testing.T) {
	r, err := Decode([]byte(`{"time":"2024-05-01T10:15:00Z","power":null,"flow":"n/a","filtered_voltage":"abc"}`))
	require.NoError(t, err)

	assert.Nil(t, r.Power)
	assert.Nil(t, r.Flow)
	assert.Nil(t, r.FilteredVoltage)
	assert.Nil(t, r.FilteredCurrent)
	assert.Nil(t, r.TotalWaterVolume)
	assert.Nil(t, r.FilterInitialized)
}

func TestDecodeFilterInitializedCoercion(t *testing.T) {
	r, err := Decode([]byte(`{"time":"2024-05-01T10:15:00Z","filter_initialized":0}`))
	require.NoError(t, err)
	require.NotNil(t, r.FilterInitialized)
	assert.False(t, *r.FilterInitialized)

	r, err = Decode([]byte(`{"time":"2024-05-01T10:15:00Z","filter_initialized":"true"}`))
	require.NoError(t, err)
	require.NotNil(t, r.FilterInitialized)
	assert.True(t, *r.FilterInitialized)
}
