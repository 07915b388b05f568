package models

import "time"

// SensorReading is one telemetry sample published by the pump controller.
// Optional fields are pointers so that an absent value is never mistaken
// for zero when computing means.
type SensorReading struct {
	Time                time.Time `json:"time"`
	ADCCurrent          *float64  `json:"adc_current,omitempty"`
	ADCVoltage          *float64  `json:"adc_voltage,omitempty"`
	RawCurrent          *float64  `json:"raw_current,omitempty"`
	RawVoltage          *float64  `json:"raw_voltage,omitempty"`
	FilteredCurrent     *float64  `json:"filtered_current,omitempty"`
	FilteredVoltage     *float64  `json:"filtered_voltage,omitempty"`
	Flow                *float64  `json:"flow,omitempty"`
	Power               *float64  `json:"power,omitempty"`
	AccumulatedEnergyWh *float64  `json:"accumulated_energy_wh,omitempty"`
	TotalWaterVolume    *float64  `json:"total_water_volume,omitempty"`
	FilterInitialized   *bool     `json:"filter_initialized,omitempty"`
}

// AggregateBucket holds the statistics of every reading that falls into one
// time bucket.
type AggregateBucket struct {
	BucketKey     string         `json:"bucketKey"`
	Start         time.Time      `json:"start"`
	Count         int            `json:"count"`
	AvgCurrent    *float64       `json:"avg_current"`
	AvgVoltage    *float64       `json:"avg_voltage"`
	AvgPower      *float64       `json:"avg_power"`
	TotalFlow     float64        `json:"total_flow"`
	TotalEnergyWh *float64       `json:"total_energy_wh"`
	First         *SensorReading `json:"first"`
	Last          *SensorReading `json:"last"`
}

// Float returns a pointer to v. Handy for building readings in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
