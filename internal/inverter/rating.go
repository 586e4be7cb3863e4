package inverter

// DeviceRating answers QueryRating: nameplate values and battery settings.
type DeviceRating struct {
	GridRatingVoltage         float64 // V
	GridRatingCurrent         float64 // A
	OutputRatingVoltage       float64 // V
	OutputRatingFrequency     float64 // Hz
	OutputRatingCurrent       float64 // A
	OutputRatingApparentPower int     // VA
	OutputRatingActivePower   int     // W
	BatteryRatingVoltage      float64 // V
	BatteryRechargeVoltage    float64 // V
	BatteryUnderVoltage       float64 // V
	BatteryBulkVoltage        float64 // V
	BatteryFloatVoltage       float64 // V
	BatteryType               BatteryType
}

// BatteryType is the configured battery chemistry.
type BatteryType uint8

// Battery types as numbered by the device.
const (
	BatteryAGM BatteryType = iota
	BatteryFlooded
	BatteryUser
	BatteryPylontech
	BatteryShinheung
	BatteryWeco
	BatterySoltaro
)

// String returns the battery type name.
func (b BatteryType) String() string {
	switch b {
	case BatteryAGM:
		return "AGM"
	case BatteryFlooded:
		return "Flooded"
	case BatteryUser:
		return "User"
	case BatteryPylontech:
		return "Pylontech"
	case BatteryShinheung:
		return "Shinheung"
	case BatteryWeco:
		return "WECO"
	case BatterySoltaro:
		return "Soltaro"
	default:
		return "Unknown"
	}
}

// OutputFrequencies are the AC output frequencies SetOutputFrequency accepts.
var OutputFrequencies = []int{50, 60}

// ValidOutputFrequency reports whether hz is in OutputFrequencies.
func ValidOutputFrequency(hz int) bool {
	for _, f := range OutputFrequencies {
		if f == hz {
			return true
		}
	}
	return false
}
