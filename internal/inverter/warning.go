package inverter

import "math/bits"

// Warning is a single warning bit. WarningSet answers QueryWarnings.
type Warning uint32

// WarningSet is the decoded warning bitmask.
type WarningSet uint32

// Warning bits, in the order the device reports them. Bits 0, 13 and 15 are
// reserved.
const (
	WarnInverterFault          Warning = 1 << 1
	WarnBusOver                Warning = 1 << 2
	WarnBusUnder               Warning = 1 << 3
	WarnBusSoftFail            Warning = 1 << 4
	WarnLineFail               Warning = 1 << 5
	WarnOPVShort               Warning = 1 << 6
	WarnInverterVoltageTooLow  Warning = 1 << 7
	WarnInverterVoltageTooHigh Warning = 1 << 8
	WarnOverTemperature        Warning = 1 << 9
	WarnFanLocked              Warning = 1 << 10
	WarnBatteryVoltageHigh     Warning = 1 << 11
	WarnBatteryLowAlarm        Warning = 1 << 12
	WarnBatteryUnderShutdown   Warning = 1 << 14
	WarnOverload               Warning = 1 << 16
	WarnEEPROMFault            Warning = 1 << 17
	WarnInverterOverCurrent    Warning = 1 << 18
	WarnInverterSoftFail       Warning = 1 << 19
	WarnSelfTestFail           Warning = 1 << 20
	WarnOPDCVoltageOver        Warning = 1 << 21
	WarnBatteryOpen            Warning = 1 << 22
	WarnCurrentSensorFail      Warning = 1 << 23
	WarnBatteryShort           Warning = 1 << 24
	WarnPowerLimit             Warning = 1 << 25
	WarnPVVoltageHigh          Warning = 1 << 26
	WarnMPPTOverloadFault      Warning = 1 << 27
	WarnMPPTOverloadWarning    Warning = 1 << 28
	WarnBatteryTooLowToCharge  Warning = 1 << 29
)

var warningText = map[Warning]string{
	WarnInverterFault:          "Inverter fault",
	WarnBusOver:                "Bus over",
	WarnBusUnder:               "Bus under",
	WarnBusSoftFail:            "Bus soft fail",
	WarnLineFail:               "Line fail",
	WarnOPVShort:               "OPV short",
	WarnInverterVoltageTooLow:  "Inverter voltage too low",
	WarnInverterVoltageTooHigh: "Inverter voltage too high",
	WarnOverTemperature:        "Over temperature",
	WarnFanLocked:              "Fan locked",
	WarnBatteryVoltageHigh:     "Battery voltage high",
	WarnBatteryLowAlarm:        "Battery low alarm",
	WarnBatteryUnderShutdown:   "Battery under shutdown",
	WarnOverload:               "Overload",
	WarnEEPROMFault:            "EEPROM fault",
	WarnInverterOverCurrent:    "Inverter over current",
	WarnInverterSoftFail:       "Inverter soft fail",
	WarnSelfTestFail:           "Self test fail",
	WarnOPDCVoltageOver:        "OP DC voltage over",
	WarnBatteryOpen:            "Battery open",
	WarnCurrentSensorFail:      "Current sensor fail",
	WarnBatteryShort:           "Battery short",
	WarnPowerLimit:             "Power limit",
	WarnPVVoltageHigh:          "PV voltage high",
	WarnMPPTOverloadFault:      "MPPT overload fault",
	WarnMPPTOverloadWarning:    "MPPT overload warning",
	WarnBatteryTooLowToCharge:  "Battery too low to charge",
}

// String returns the warning's description.
func (w Warning) String() string {
	if s, ok := warningText[w]; ok {
		return s
	}
	return "Unknown warning"
}

// Has reports whether w is set.
func (s WarningSet) Has(w Warning) bool {
	return uint32(s)&uint32(w) != 0
}

// Empty reports whether no known warning is set. Reserved bits are ignored.
func (s WarningSet) Empty() bool {
	return len(s.Warnings()) == 0
}

// Warnings returns the known warnings in the set, lowest bit first.
func (s WarningSet) Warnings() []Warning {
	var out []Warning
	for v := uint32(s); v != 0; v &= v - 1 {
		w := Warning(1 << bits.TrailingZeros32(v))
		if _, ok := warningText[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Descriptions returns the human-readable text of each warning in the set.
func (s WarningSet) Descriptions() []string {
	warnings := s.Warnings()
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
