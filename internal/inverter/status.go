package inverter

// GeneralStatus answers QueryStatus: the live electrical readings.
type GeneralStatus struct {
	GridVoltage             float64 // V
	GridFrequency           float64 // Hz
	OutputVoltage           float64 // V
	OutputFrequency         float64 // Hz
	OutputApparentPower     int     // VA
	OutputActivePower       int     // W
	OutputLoadPercent       int     // %
	BusVoltage              int     // V
	BatteryVoltage          float64 // V
	BatteryChargingCurrent  int     // A
	BatteryCapacity         int     // %
	HeatSinkTemperature     int     // °C
	SolarInputCurrent       int     // A
	SolarInputVoltage       float64 // V
	SCCBatteryVoltage       float64 // V
	BatteryDischargeCurrent int     // A
	Status                  DeviceStatus
}

// DeviceStatus is the status bitmask carried in the general status response.
type DeviceStatus uint8

// Device status bits.
const (
	StatusACCharging DeviceStatus = 1 << iota
	StatusSCCCharging
	StatusCharging
	StatusBatteryVoltageSteady
	StatusLoadOn
	StatusSCCFirmwareUpdated
	StatusConfigurationChanged
	StatusSBUPriorityVersion
)

// Mode answers QueryMode.
type Mode byte

// Device modes, using the inverter's own single-letter codes.
const (
	ModePowerOn     Mode = 'P'
	ModeStandby     Mode = 'S'
	ModeLine        Mode = 'L'
	ModeBattery     Mode = 'B'
	ModeFault       Mode = 'F'
	ModePowerSaving Mode = 'H'
)

// String returns the human-readable mode shown on the accessory.
func (m Mode) String() string {
	switch m {
	case ModePowerOn:
		return "Power On"
	case ModeStandby:
		return "Standby"
	case ModeLine:
		return "Line"
	case ModeBattery:
		return "Battery"
	case ModeFault:
		return "Fault"
	case ModePowerSaving:
		return "Power Saving"
	default:
		return "Unknown"
	}
}
