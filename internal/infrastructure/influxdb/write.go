package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// MeasurementInverterStatus is the measurement written for every successful
// status query.
const MeasurementInverterStatus = "inverter_status"

// WriteInverterStatus queues one inverter_status point tagged with the
// inverter's serial number. It implements the controller's
// TelemetryRecorder. The write is non-blocking.
func (c *Client) WriteInverterStatus(serial string, status inverter.GeneralStatus) {
	if !c.IsConnected() {
		return
	}
	c.writes.WritePoint(statusPoint(serial, status, time.Now()))
}

func statusPoint(serial string, s inverter.GeneralStatus, ts time.Time) *write.Point {
	if serial == "" {
		serial = "unknown"
	}
	return write.NewPoint(
		MeasurementInverterStatus,
		map[string]string{"serial": serial},
		map[string]any{
			"grid_voltage":              s.GridVoltage,
			"grid_frequency":            s.GridFrequency,
			"output_voltage":            s.OutputVoltage,
			"output_frequency":          s.OutputFrequency,
			"output_apparent_power":     s.OutputApparentPower,
			"output_active_power":       s.OutputActivePower,
			"output_load_percent":       s.OutputLoadPercent,
			"bus_voltage":               s.BusVoltage,
			"battery_voltage":           s.BatteryVoltage,
			"battery_charging_current":  s.BatteryChargingCurrent,
			"battery_discharge_current": s.BatteryDischargeCurrent,
			"battery_capacity":          s.BatteryCapacity,
			"heat_sink_temperature":     s.HeatSinkTemperature,
			"pv_input_current":          s.SolarInputCurrent,
			"pv_input_voltage":          s.SolarInputVoltage,
			"scc_battery_voltage":       s.SCCBatteryVoltage,
			"device_status":             int(s.Status),
		},
		ts,
	)
}
