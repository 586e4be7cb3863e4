package accessory

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// customUUIDPrefix prefixes the bridge's own characteristic types. The
	// last four hex digits carry the characteristic index.
	customUUIDPrefix = "D1957F69-BAFB-4508-A4D1-573C606B"

	// standardUUIDSuffix completes a short HomeKit type into a full UUID.
	standardUUIDSuffix = "-0000-1000-8000-0026BB765291"
)

// CustomUUID returns the UUID for a bridge-defined characteristic index.
func CustomUUID(index uint16) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("%s%04X", customUUIDPrefix, index))
}

// StandardUUID expands a short HomeKit type (e.g. 0x25 for On) into its UUID.
func StandardUUID(short uint32) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("%08X%s", short, standardUUIDSuffix))
}

// Eve characteristic types understood by common HomeKit apps for energy data.
var (
	eveVoltage     = uuid.MustParse("E863F10A-079E-48FF-8F27-9C2605A29F52")
	eveConsumption = uuid.MustParse("E863F10D-079E-48FF-8F27-9C2605A29F52")
)

// Short HomeKit types used by the accessory.
const (
	typeAccessoryInformation = 0x3E
	typeOutlet               = 0x47
	typeBatteryService       = 0x96

	typeIdentify         = 0x14
	typeManufacturer     = 0x20
	typeModel            = 0x21
	typeName             = 0x23
	typeOn               = 0x25
	typeOutletInUse      = 0x26
	typeSerialNumber     = 0x30
	typeFirmwareRevision = 0x52
	typeBatteryLevel     = 0x68
	typeStatusFault      = 0x77
	typeStatusLowBattery = 0x79
	typeChargingState    = 0x8F
)
