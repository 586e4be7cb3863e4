package inverter

import (
	"fmt"
	"strings"
)

// Flag is a named boolean device setting, toggled with an enable or disable
// command rather than written as a value.
type Flag uint8

// Flags in device order.
const (
	FlagBuzzer Flag = iota
	FlagOverloadBypass
	FlagPowerSaving
	FlagDisplayTimeout
	FlagOverloadRestart
	FlagTemperatureRestart
	FlagBacklight
	FlagAlarm
	FlagRecordFault

	flagCount
)

type flagInfo struct {
	name        string
	code        byte
	description string
}

var flagTable = [flagCount]flagInfo{
	FlagBuzzer:             {"buzzer", 'A', "Buzzer"},
	FlagOverloadBypass:     {"overload_bypass", 'B', "Overload bypass"},
	FlagPowerSaving:        {"power_saving", 'J', "Power saving"},
	FlagDisplayTimeout:     {"display_timeout", 'K', "Display timeout"},
	FlagOverloadRestart:    {"overload_restart", 'U', "Overload restart"},
	FlagTemperatureRestart: {"temperature_restart", 'V', "Over temperature restart"},
	FlagBacklight:          {"backlight", 'X', "Backlight"},
	FlagAlarm:              {"alarm", 'Y', "Alarm on primary source interrupt"},
	FlagRecordFault:        {"record_fault", 'Z', "Fault code record"},
}

// AllFlags lists every flag in device order.
func AllFlags() []Flag {
	out := make([]Flag, flagCount)
	for i := range out {
		out[i] = Flag(i)
	}
	return out
}

// Valid reports whether f is a defined flag.
func (f Flag) Valid() bool { return f < flagCount }

// Name returns the snake_case identifier, e.g. "overload_bypass".
func (f Flag) Name() string {
	if !f.Valid() {
		return fmt.Sprintf("flag(%d)", uint8(f))
	}
	return flagTable[f].name
}

// Code returns the device's letter code for the flag. Drivers use it when
// encoding enable/disable commands.
func (f Flag) Code() byte {
	if !f.Valid() {
		return 0
	}
	return flagTable[f].code
}

// String returns the human-readable description.
func (f Flag) String() string {
	if !f.Valid() {
		return f.Name()
	}
	return flagTable[f].description
}

// ParseFlag looks a flag up by its Name.
func ParseFlag(name string) (Flag, bool) {
	for i, info := range flagTable {
		if info.name == name {
			return Flag(i), true
		}
	}
	return 0, false
}

// FlagSet answers QueryFlags with the set of enabled flags. A flag not in the
// set is disabled.
type FlagSet uint16

// NewFlagSet builds a set from flags.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s = s.With(f)
	}
	return s
}

// Has reports whether f is enabled.
func (s FlagSet) Has(f Flag) bool {
	return f.Valid() && s&(1<<f) != 0
}

// With returns s with f enabled.
func (s FlagSet) With(f Flag) FlagSet {
	if !f.Valid() {
		return s
	}
	return s | 1<<f
}

// Without returns s with f disabled.
func (s FlagSet) Without(f Flag) FlagSet {
	if !f.Valid() {
		return s
	}
	return s &^ (1 << f)
}

// Flags returns the enabled flags in device order.
func (s FlagSet) Flags() []Flag {
	var out []Flag
	for _, f := range AllFlags() {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of enabled flags.
func (s FlagSet) Len() int { return len(s.Flags()) }

// String lists the enabled flag names.
func (s FlagSet) String() string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.Name()
	}
	return "[" + strings.Join(names, " ") + "]"
}
