// Package format holds the stateless transforms applied while copying inverter
// telemetry into accessory state: display scaling, bitmask tests, saturating
// integer conversions and the derived battery, fault and outlet classifications.
//
// Nothing in this package returns an error. Out-of-range inputs are clamped.
package format

import (
	"math"
	"strings"
)

// NoWarnings is the warning text shown when the decoded warning set is empty.
const NoWarnings = "None"

// TwoDecimals truncates v to two decimal places, toward zero.
//
// This is deliberately not rounding: 1.239 becomes 1.23, not 1.24. NaN and
// infinities are returned as 0 so they never reach a subscriber.
func TwoDecimals(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Trunc(v*100) / 100
}

// Has reports whether bit is set in mask. An unset bit is false, never unknown.
func Has[T ~uint8 | ~uint16 | ~uint32 | ~uint64](mask, bit T) bool {
	return bit != 0 && mask&bit == bit
}

// integer covers the raw numeric types inverter responses carry.
type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Uint8 converts v to uint8, saturating at 0 and 255.
func Uint8[T integer](v T) uint8 {
	return uint8(clamp(v, math.MaxUint8))
}

// Uint16 converts v to uint16, saturating at 0 and 65535.
func Uint16[T integer](v T) uint16 {
	return uint16(clamp(v, math.MaxUint16))
}

// Uint32 converts v to uint32, saturating at 0 and MaxUint32.
func Uint32[T integer](v T) uint32 {
	return uint32(clamp(v, math.MaxUint32))
}

// Percent converts v to a 0..100 percentage.
func Percent[T integer](v T) uint8 {
	return uint8(clamp(v, 100))
}

func clamp[T integer](v T, limit uint64) uint64 {
	// Negative signed values: T(0) > v only holds for signed types.
	if v < T(0) {
		return 0
	}
	u := uint64(v)
	if u > limit {
		return limit
	}
	return u
}

// ChargingState is the battery charging classification.
type ChargingState uint8

// Charging states, numbered like the HomeKit ChargingState characteristic.
const (
	NotCharging ChargingState = 0
	Charging    ChargingState = 1
)

// String returns the state name.
func (s ChargingState) String() string {
	if s == Charging {
		return "charging"
	}
	return "not_charging"
}

// Charge classifies the battery as charging iff current > 0. No other field
// influences the result.
func Charge(current float64) ChargingState {
	if current > 0 {
		return Charging
	}
	return NotCharging
}

// LowBattery reports whether capacity is strictly below threshold.
func LowBattery(capacity, threshold int) bool {
	return capacity < threshold
}

// OutletRule selects which reading decides whether the AC output is in use.
type OutletRule string

// Outlet-in-use rules.
const (
	OutletRuleLoadPercent OutletRule = "load_percent"
	OutletRuleActivePower OutletRule = "active_power"
)

// OutletInUse applies rule to the current readings. An unknown rule falls
// back to the load-percent rule.
func OutletInUse(rule OutletRule, loadPercent, activePower int) bool {
	if rule == OutletRuleActivePower {
		return activePower > 0
	}
	return loadPercent > 0
}

// WarningText joins warning descriptions, or returns NoWarnings for an empty set.
func WarningText(descriptions []string) string {
	if len(descriptions) == 0 {
		return NoWarnings
	}
	return strings.Join(descriptions, ", ")
}

// Fault mirrors WarningText: true exactly when there is at least one warning.
func Fault(descriptions []string) bool {
	return len(descriptions) > 0
}
