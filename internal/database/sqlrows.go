package database

import (
	"database/sql"

	"github.com/arec-energy/pumpstream/internal/models"
)

const readingColumns = `time, adc_current, adc_voltage, raw_current, raw_voltage,
        filtered_current, filtered_voltage, flow, power,
        accumulated_energy_wh, total_water_volume, filter_initialized`

// nullableFields receives the optional columns of a reading row.
type nullableFields struct {
	adcCurrent          sql.NullFloat64
	adcVoltage          sql.NullFloat64
	rawCurrent          sql.NullFloat64
	rawVoltage          sql.NullFloat64
	filteredCurrent     sql.NullFloat64
	filteredVoltage     sql.NullFloat64
	flow                sql.NullFloat64
	power               sql.NullFloat64
	accumulatedEnergyWh sql.NullFloat64
	totalWaterVolume    sql.NullFloat64
	filterInitialized   sql.NullBool
}

func (n *nullableFields) dest() []any {
	return []any{
		&n.adcCurrent, &n.adcVoltage, &n.rawCurrent, &n.rawVoltage,
		&n.filteredCurrent, &n.filteredVoltage, &n.flow, &n.power,
		&n.accumulatedEnergyWh, &n.totalWaterVolume, &n.filterInitialized,
	}
}

func (n *nullableFields) apply(r *models.SensorReading) {
	r.ADCCurrent = nullFloat(n.adcCurrent)
	r.ADCVoltage = nullFloat(n.adcVoltage)
	r.RawCurrent = nullFloat(n.rawCurrent)
	r.RawVoltage = nullFloat(n.rawVoltage)
	r.FilteredCurrent = nullFloat(n.filteredCurrent)
	r.FilteredVoltage = nullFloat(n.filteredVoltage)
	r.Flow = nullFloat(n.flow)
	r.Power = nullFloat(n.power)
	r.AccumulatedEnergyWh = nullFloat(n.accumulatedEnergyWh)
	r.TotalWaterVolume = nullFloat(n.totalWaterVolume)
	if n.filterInitialized.Valid {
		b := n.filterInitialized.Bool
		r.FilterInitialized = &b
	}
}

// fieldArgs returns the optional fields in column order. Nil pointers are
// sent as SQL NULL by database/sql.
func fieldArgs(r models.SensorReading) []any {
	return []any{
		r.ADCCurrent, r.ADCVoltage, r.RawCurrent, r.RawVoltage,
		r.FilteredCurrent, r.FilteredVoltage, r.Flow, r.Power,
		r.AccumulatedEnergyWh, r.TotalWaterVolume, r.FilterInitialized,
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
