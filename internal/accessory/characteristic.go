package accessory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Format is the value type of a characteristic.
type Format string

// Characteristic formats. Values are stored as the matching Go type:
// float64, int, uint8, uint16, uint32, bool or string.
const (
	FormatFloat  Format = "float"
	FormatInt    Format = "int"
	FormatUint8  Format = "uint8"
	FormatUint16 Format = "uint16"
	FormatUint32 Format = "uint32"
	FormatBool   Format = "bool"
	FormatString Format = "string"
)

// Unit is the display unit of a numeric characteristic.
type Unit string

// Units.
const (
	UnitNone       Unit = ""
	UnitCelsius    Unit = "celsius"
	UnitPercentage Unit = "percentage"
	UnitVolts      Unit = "volts"
	UnitAmps       Unit = "amps"
	UnitWatts      Unit = "watts"
	UnitVoltAmps   Unit = "volt_amps"
	UnitHertz      Unit = "hertz"
)

// Permissions is a bitmask of what clients may do with a characteristic.
type Permissions uint8

// Permission bits.
const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermEvents
)

// readEvents is the permission set of every telemetry characteristic.
const readEvents = PermRead | PermEvents

// Has reports whether all bits of p2 are in p.
func (p Permissions) Has(p2 Permissions) bool { return p&p2 == p2 }

// Strings lists the permission names, for JSON and tables.
func (p Permissions) Strings() []string {
	var out []string
	if p.Has(PermRead) {
		out = append(out, "read")
	}
	if p.Has(PermWrite) {
		out = append(out, "write")
	}
	if p.Has(PermEvents) {
		out = append(out, "events")
	}
	return out
}

// Definition is the static description of a characteristic.
type Definition struct {
	// ID is the stable, human-readable key used by the API and MQTT topics.
	ID          string
	Type        uuid.UUID
	Description string
	Format      Format
	Unit        Unit
	Perms       Permissions
	// ValidValues restricts writable numeric characteristics to a discrete set.
	ValidValues []float64
}

// Characteristic is one observable property. Its value is read and replaced
// atomically; there is no ordering between different characteristics.
type Characteristic struct {
	def     Definition
	service *Service
	value   atomic.Pointer[valueBox]
}

type valueBox struct {
	v any
}

func newCharacteristic(def Definition) *Characteristic {
	c := &Characteristic{def: def}
	c.value.Store(&valueBox{v: zeroValue(def.Format)})
	return c
}

// Definition returns the static description.
func (c *Characteristic) Definition() Definition { return c.def }

// ID returns the characteristic's stable key.
func (c *Characteristic) ID() string { return c.def.ID }

// Service returns the owning service.
func (c *Characteristic) Service() *Service { return c.service }

// Value returns the current value.
func (c *Characteristic) Value() any { return c.value.Load().v }

// Writable reports whether clients may write the characteristic.
func (c *Characteristic) Writable() bool { return c.def.Perms.Has(PermWrite) }

// swap stores v and returns the previous value and whether it changed.
func (c *Characteristic) swap(v any) (old any, changed bool) {
	next := &valueBox{v: v}
	prev := c.value.Swap(next)
	return prev.v, prev.v != v
}

func zeroValue(f Format) any {
	switch f {
	case FormatFloat:
		return float64(0)
	case FormatInt:
		return int(0)
	case FormatUint8:
		return uint8(0)
	case FormatUint16:
		return uint16(0)
	case FormatUint32:
		return uint32(0)
	case FormatBool:
		return false
	default:
		return ""
	}
}

// Coerce converts a client-supplied value into the characteristic's Go type.
// Numbers may arrive as any numeric type or as decimal strings; booleans as
// bool, 0/1 or "true"/"false".
func (d Definition) Coerce(raw any) (any, error) {
	switch d.Format {
	case FormatBool:
		return coerceBool(raw)
	case FormatString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidValue, d.ID)
	}

	n, err := coerceNumber(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, d.ID, err)
	}

	switch d.Format {
	case FormatFloat:
		return n, nil
	case FormatInt:
		return int(n), nil
	case FormatUint8:
		return uint8(clampFloat(n, math.MaxUint8)), nil
	case FormatUint16:
		return uint16(clampFloat(n, math.MaxUint16)), nil
	case FormatUint32:
		return uint32(clampFloat(n, math.MaxUint32)), nil
	}
	return nil, fmt.Errorf("%w: %s has unsupported format %q", ErrInvalidValue, d.ID, d.Format)
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
		}
		return b, nil
	}
	n, err := coerceNumber(raw)
	if err != nil || (n != 0 && n != 1) {
		return false, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, raw)
	}
	return n == 1, nil
}

func coerceNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

func clampFloat(v, limit float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > limit:
		return limit
	default:
		return v
	}
}
