// Package decoder turns raw broker payloads into canonical sensor readings.
//
// Decode is a pure function. Only the time field is mandatory; every other
// field is coerced when possible and treated as absent otherwise, so a
// payload with a usable timestamp always decodes.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/arec-energy/pumpstream/internal/models"
)

// unixMillisThreshold separates unix seconds from unix milliseconds.
const unixMillisThreshold = 1_000_000_000_000

var (
	ErrNotObject   = errors.New("payload is not a JSON object")
	ErrMissingTime = errors.New("missing time field")
	ErrBadTime     = errors.New("unparsable time field")
)

// DecodeError reports a payload that cannot become a reading.
type DecodeError struct {
	Err     error
	Payload string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode reading: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Decode parses one JSON object into a SensorReading.
func Decode(payload []byte) (models.SensorReading, error) {
	var reading models.SensorReading

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return reading, newDecodeError(ErrNotObject, payload)
	}
	// Exactly one value: trailing text or a second object is malformed.
	if _, err := dec.Token(); err != io.EOF {
		return reading, newDecodeError(ErrNotObject, payload)
	}

	tv, ok := raw["time"]
	if !ok || tv == nil {
		return reading, newDecodeError(ErrMissingTime, payload)
	}
	ts, err := toTime(tv)
	if err != nil {
		return reading, newDecodeError(fmt.Errorf("%w: %v", ErrBadTime, err), payload)
	}
	reading.Time = ts

	reading.ADCCurrent = toFloat(raw["adc_current"])
	reading.ADCVoltage = toFloat(raw["adc_voltage"])
	reading.RawCurrent = toFloat(raw["raw_current"])
	reading.RawVoltage = toFloat(raw["raw_voltage"])
	reading.FilteredCurrent = toFloat(raw["filtered_current"])
	reading.FilteredVoltage = toFloat(raw["filtered_voltage"])
	reading.Flow = toFloat(raw["flow"])
	reading.Power = toFloat(raw["power"])
	reading.AccumulatedEnergyWh = toFloat(raw["accumulated_energy_wh"])
	reading.TotalWaterVolume = toFloat(raw["total_water_volume"])
	reading.FilterInitialized = toBool(raw["filter_initialized"])

	return reading, nil
}

func newDecodeError(err error, payload []byte) *DecodeError {
	p := string(payload)
	if len(p) > 256 {
		p = p[:256]
	}
	return &DecodeError{Err: err, Payload: p}
}

// toTime accepts RFC3339-like strings and unix seconds or milliseconds.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n)
		}
		return time.Time{}, fmt.Errorf("bad timestamp string: %q", t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return fromUnix(n)
		}
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
			return time.Time{}, fmt.Errorf("bad timestamp number: %s", t)
		}
		return fromUnix(int64(f))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// fromUnix rejects instants outside years 0000-9999, which no store or
// RFC 3339 encoder can represent.
func fromUnix(n int64) (time.Time, error) {
	ts := time.Unix(n, 0).UTC()
	if n > unixMillisThreshold || n < -unixMillisThreshold {
		ts = time.UnixMilli(n).UTC()
	}
	if y := ts.Year(); y < 0 || y > 9999 {
		return time.Time{}, fmt.Errorf("timestamp out of range: %d", n)
	}
	return ts, nil
}

func toFloat(v any) *float64 {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		b := f != 0
		return &b
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &b
	default:
		return nil
	}
}
