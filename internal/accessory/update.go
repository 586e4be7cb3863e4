package accessory

import (
	"github.com/nerrad567/solar-bridge/internal/format"
	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// The Update methods copy one query's result into the tree. They never fail:
// numeric conversions saturate and floats are truncated to two decimals.

// UpdateStatus applies a general status reading, including the battery
// service and every value derived from it.
func (a *Accessory) UpdateStatus(s inverter.GeneralStatus) {
	a.set(IDGridVoltage, format.TwoDecimals(s.GridVoltage))
	a.set(IDGridFrequency, format.TwoDecimals(s.GridFrequency))
	a.set(IDOutputVoltage, format.TwoDecimals(s.OutputVoltage))
	a.set(IDOutputFrequency, format.TwoDecimals(s.OutputFrequency))
	a.set(IDOutputApparentPower, format.Uint16(s.OutputApparentPower))
	a.set(IDOutputActivePower, format.Uint16(s.OutputActivePower))
	a.set(IDOutputLoadPercent, format.Percent(s.OutputLoadPercent))
	a.set(IDBusVoltage, format.Uint16(s.BusVoltage))
	a.set(IDHeatSinkTemperature, s.HeatSinkTemperature)
	a.set(IDPVInputCurrent, format.Uint32(s.SolarInputCurrent))
	a.set(IDPVInputVoltage, format.TwoDecimals(s.SolarInputVoltage))

	a.set(IDACCharging, format.Has(s.Status, inverter.StatusACCharging))
	a.set(IDSCCCharging, format.Has(s.Status, inverter.StatusSCCCharging))
	a.set(IDCharging, format.Has(s.Status, inverter.StatusCharging))
	a.set(IDBatteryVoltageSteady, format.Has(s.Status, inverter.StatusBatteryVoltageSteady))
	a.set(IDLoadEnabled, format.Has(s.Status, inverter.StatusLoadOn))
	a.set(IDSCCFirmwareUpdated, format.Has(s.Status, inverter.StatusSCCFirmwareUpdated))
	a.set(IDConfigurationChanged, format.Has(s.Status, inverter.StatusConfigurationChanged))
	a.set(IDSBUPriorityVersion, format.Has(s.Status, inverter.StatusSBUPriorityVersion))

	a.set(IDOn, format.Has(s.Status, inverter.StatusLoadOn))
	a.set(IDOutletInUse, format.OutletInUse(a.profile.OutletRule, s.OutputLoadPercent, s.OutputActivePower))

	a.set(IDBatteryLevel, format.Percent(s.BatteryCapacity))
	a.set(IDChargingState, uint8(format.Charge(float64(s.BatteryChargingCurrent))))
	a.set(IDStatusLowBattery, boolUint8(format.LowBattery(s.BatteryCapacity, a.profile.LowBatteryThreshold)))
	a.set(IDBatteryVoltage, format.TwoDecimals(s.BatteryVoltage))
	a.set(IDBatteryChargingCurrent, format.Uint8(s.BatteryChargingCurrent))
}

// UpdateMode applies the device mode.
func (a *Accessory) UpdateMode(m inverter.Mode) {
	a.set(IDMode, m.String())
}

// UpdateSerialNumber applies the serial number to the information service.
func (a *Accessory) UpdateSerialNumber(sn inverter.SerialNumber) {
	a.set(IDSerialNumber, string(sn))
}

// UpdateProtocolID applies the protocol ID.
func (a *Accessory) UpdateProtocolID(p inverter.ProtocolID) {
	a.set(IDProtocolID, format.Uint32(int(p)))
}

// UpdateWarnings applies the warning set. The fault indicator is set exactly
// when the warning text is not "None".
func (a *Accessory) UpdateWarnings(w inverter.WarningSet) {
	descriptions := w.Descriptions()
	a.set(IDWarningStatus, format.WarningText(descriptions))
	a.set(IDStatusFault, boolUint8(format.Fault(descriptions)))
}

// UpdateFlags applies the enabled flag set. Flags missing from the set are
// reported disabled.
func (a *Accessory) UpdateFlags(f inverter.FlagSet) {
	for _, flag := range inverter.AllFlags() {
		a.set(FlagID(flag), f.Has(flag))
	}
}

// UpdateFirmwareVersion applies the main firmware version, which is also the
// accessory's firmware revision.
func (a *Accessory) UpdateFirmwareVersion(v inverter.FirmwareVersion) {
	a.set(IDFirmwareVersion, v.String())
	a.set(IDFirmwareRevision, v.String())
}

// UpdateSecondaryFirmwareVersion applies the secondary firmware version.
func (a *Accessory) UpdateSecondaryFirmwareVersion(v inverter.SecondaryFirmwareVersion) {
	a.set(IDFirmwareVersionSecondary, v.String())
}

// UpdateRating applies the rating block.
func (a *Accessory) UpdateRating(r inverter.DeviceRating) {
	a.set(IDGridRatingVoltage, format.TwoDecimals(r.GridRatingVoltage))
	a.set(IDGridRatingCurrent, format.TwoDecimals(r.GridRatingCurrent))
	a.set(IDOutputRatingVoltage, format.TwoDecimals(r.OutputRatingVoltage))
	a.set(IDOutputRatingFrequency, format.TwoDecimals(r.OutputRatingFrequency))
	a.set(IDOutputRatingCurrent, format.TwoDecimals(r.OutputRatingCurrent))
	a.set(IDOutputRatingApparentPower, format.Uint32(r.OutputRatingApparentPower))
	a.set(IDOutputRatingActivePower, format.Uint32(r.OutputRatingActivePower))
	a.set(IDBatteryRatingVoltage, format.TwoDecimals(r.BatteryRatingVoltage))
	a.set(IDBatteryRechargeVoltage, format.TwoDecimals(r.BatteryRechargeVoltage))
	a.set(IDBatteryUnderVoltage, format.TwoDecimals(r.BatteryUnderVoltage))
	a.set(IDBatteryBulkVoltage, format.TwoDecimals(r.BatteryBulkVoltage))
	a.set(IDBatteryFloatVoltage, format.TwoDecimals(r.BatteryFloatVoltage))
	a.set(IDBatteryType, r.BatteryType.String())
}

func boolUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
