package accessory

import (
	"github.com/google/uuid"

	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// Service IDs.
const (
	ServiceInformation = "information"
	ServiceInverter    = "inverter"
	ServiceBattery     = "battery"
	ServiceRating      = "rating"
	ServiceFirmware    = "firmware"
)

// Characteristic IDs. Flag characteristics are named by FlagID.
const (
	// Accessory information
	IDName             = "name"
	IDManufacturer     = "manufacturer"
	IDModel            = "model"
	IDSerialNumber     = "serial_number"
	IDFirmwareRevision = "firmware_revision"
	IDIdentify         = "identify"

	// Inverter (outlet)
	IDOn                   = "on"
	IDOutletInUse          = "outlet_in_use"
	IDMode                 = "mode"
	IDOutputLoadPercent    = "output_load_percent"
	IDOutputVoltage        = "output_voltage"
	IDOutputFrequency      = "output_frequency"
	IDOutputApparentPower  = "output_apparent_power"
	IDOutputActivePower    = "output_active_power"
	IDBusVoltage           = "bus_voltage"
	IDHeatSinkTemperature  = "heat_sink_temperature"
	IDPVInputCurrent       = "pv_input_current"
	IDPVInputVoltage       = "pv_input_voltage"
	IDGridVoltage          = "grid_voltage"
	IDGridFrequency        = "grid_frequency"
	IDACCharging           = "ac_charging"
	IDSCCCharging          = "scc_charging"
	IDCharging             = "charging"
	IDBatteryVoltageSteady = "battery_voltage_steady"
	IDLoadEnabled          = "load_enabled"
	IDSCCFirmwareUpdated   = "scc_firmware_updated"
	IDConfigurationChanged = "configuration_changed"
	IDSBUPriorityVersion   = "sbu_priority_version"
	IDWarningStatus        = "warning_status"
	IDStatusFault          = "status_fault"

	// Battery
	IDBatteryName            = "battery_name"
	IDBatteryLevel           = "battery_level"
	IDChargingState          = "charging_state"
	IDStatusLowBattery       = "status_low_battery"
	IDBatteryVoltage         = "battery_voltage"
	IDBatteryChargingCurrent = "battery_charging_current"

	// Rating
	IDGridRatingVoltage         = "grid_rating_voltage"
	IDGridRatingCurrent         = "grid_rating_current"
	IDOutputRatingVoltage       = "output_rating_voltage"
	IDOutputRatingFrequency     = "output_rating_frequency"
	IDOutputRatingCurrent       = "output_rating_current"
	IDOutputRatingApparentPower = "output_rating_apparent_power"
	IDOutputRatingActivePower   = "output_rating_active_power"
	IDBatteryRatingVoltage      = "battery_rating_voltage"
	IDBatteryRechargeVoltage    = "battery_recharge_voltage"
	IDBatteryUnderVoltage       = "battery_under_voltage"
	IDBatteryBulkVoltage        = "battery_bulk_voltage"
	IDBatteryFloatVoltage       = "battery_float_voltage"
	IDBatteryType               = "battery_type"

	// Firmware
	IDProtocolID               = "protocol_id"
	IDFirmwareVersion          = "firmware_version"
	IDFirmwareVersionSecondary = "firmware_version_secondary"
)

// flagIndexBase is the custom index of the first flag characteristic.
const flagIndexBase = 400

// FlagID returns the characteristic ID for a device flag, e.g. "flag_buzzer".
func FlagID(f inverter.Flag) string {
	return "flag_" + f.Name()
}

// Service groups characteristics.
type Service struct {
	ID              string
	Type            uuid.UUID
	Characteristics []*Characteristic
}

func custom(index uint16, id, description string, f Format, unit Unit) Definition {
	return Definition{ID: id, Type: CustomUUID(index), Description: description, Format: f, Unit: unit, Perms: readEvents}
}

func standard(short uint32, id, description string, f Format, perms Permissions) Definition {
	return Definition{ID: id, Type: StandardUUID(short), Description: description, Format: f, Perms: perms}
}

func informationDefinitions() []Definition {
	return []Definition{
		standard(typeName, IDName, "Name", FormatString, PermRead),
		standard(typeManufacturer, IDManufacturer, "Manufacturer", FormatString, PermRead),
		standard(typeModel, IDModel, "Model", FormatString, PermRead),
		standard(typeSerialNumber, IDSerialNumber, "Serial number", FormatString, PermRead),
		standard(typeFirmwareRevision, IDFirmwareRevision, "Firmware revision", FormatString, PermRead),
		standard(typeIdentify, IDIdentify, "Identify", FormatBool, PermWrite),
	}
}

func inverterDefinitions() []Definition {
	defs := []Definition{
		standard(typeOn, IDOn, "On", FormatBool, readEvents),
		standard(typeOutletInUse, IDOutletInUse, "Outlet in use", FormatBool, readEvents),
		custom(100, IDMode, "Mode", FormatString, UnitNone),
		custom(101, IDOutputLoadPercent, "Output load percent", FormatUint8, UnitPercentage),
		{ID: IDOutputVoltage, Type: eveVoltage, Description: "AC output voltage", Format: FormatFloat, Unit: UnitVolts, Perms: readEvents},
		custom(103, IDOutputFrequency, "AC output frequency", FormatFloat, UnitHertz),
		custom(104, IDOutputApparentPower, "AC output apparent power", FormatUint16, UnitVoltAmps),
		{ID: IDOutputActivePower, Type: eveConsumption, Description: "AC output active power", Format: FormatUint16, Unit: UnitWatts, Perms: readEvents},
		custom(106, IDBusVoltage, "Bus voltage", FormatUint16, UnitVolts),
		custom(107, IDHeatSinkTemperature, "Inverter heat sink temperature", FormatInt, UnitCelsius),
		custom(108, IDPVInputCurrent, "PV input current", FormatUint32, UnitAmps),
		custom(109, IDPVInputVoltage, "PV input voltage", FormatFloat, UnitVolts),
		custom(110, IDGridVoltage, "Grid voltage", FormatFloat, UnitVolts),
		custom(111, IDGridFrequency, "Grid frequency", FormatFloat, UnitHertz),
		custom(112, IDACCharging, "AC charging", FormatBool, UnitNone),
		custom(113, IDSCCCharging, "SCC charging", FormatBool, UnitNone),
		custom(114, IDCharging, "Charging", FormatBool, UnitNone),
		custom(115, IDBatteryVoltageSteady, "Battery voltage to steady while charging", FormatBool, UnitNone),
		custom(116, IDLoadEnabled, "Load status", FormatBool, UnitNone),
		custom(117, IDSCCFirmwareUpdated, "SCC firmware version updated", FormatBool, UnitNone),
		custom(118, IDConfigurationChanged, "Configuration changed", FormatBool, UnitNone),
		custom(119, IDSBUPriorityVersion, "Add SBU priority version", FormatBool, UnitNone),
		custom(300, IDWarningStatus, "Warning status", FormatString, UnitNone),
		standard(typeStatusFault, IDStatusFault, "Status fault", FormatUint8, readEvents),
	}

	for _, f := range inverter.AllFlags() {
		def := custom(flagIndexBase+uint16(f), FlagID(f), f.String(), FormatBool, UnitNone)
		def.Perms = PermRead | PermWrite | PermEvents
		defs = append(defs, def)
	}
	return defs
}

func batteryDefinitions() []Definition {
	return []Definition{
		standard(typeName, IDBatteryName, "Name", FormatString, PermRead),
		{ID: IDBatteryLevel, Type: StandardUUID(typeBatteryLevel), Description: "Battery level", Format: FormatUint8, Unit: UnitPercentage, Perms: readEvents},
		{ID: IDChargingState, Type: StandardUUID(typeChargingState), Description: "Charging state", Format: FormatUint8, Perms: readEvents, ValidValues: []float64{0, 1, 2}},
		{ID: IDStatusLowBattery, Type: StandardUUID(typeStatusLowBattery), Description: "Status low battery", Format: FormatUint8, Perms: readEvents, ValidValues: []float64{0, 1}},
		{ID: IDBatteryVoltage, Type: eveVoltage, Description: "Battery voltage", Format: FormatFloat, Unit: UnitVolts, Perms: readEvents},
		custom(1, IDBatteryChargingCurrent, "Battery charging current", FormatUint8, UnitAmps),
	}
}

func ratingDefinitions() []Definition {
	frequency := custom(604, IDOutputRatingFrequency, "AC output rating frequency", FormatFloat, UnitHertz)
	frequency.Perms = PermRead | PermWrite | PermEvents
	for _, hz := range inverter.OutputFrequencies {
		frequency.ValidValues = append(frequency.ValidValues, float64(hz))
	}

	return []Definition{
		custom(601, IDGridRatingVoltage, "Grid rating voltage", FormatFloat, UnitVolts),
		custom(602, IDGridRatingCurrent, "Grid rating current", FormatFloat, UnitAmps),
		custom(603, IDOutputRatingVoltage, "AC output rating voltage", FormatFloat, UnitVolts),
		frequency,
		custom(605, IDOutputRatingCurrent, "AC output rating current", FormatFloat, UnitAmps),
		custom(606, IDOutputRatingApparentPower, "AC output rating apparent power", FormatUint32, UnitVoltAmps),
		custom(607, IDOutputRatingActivePower, "AC output rating active power", FormatUint32, UnitWatts),
		custom(608, IDBatteryRatingVoltage, "Battery rating voltage", FormatFloat, UnitVolts),
		custom(609, IDBatteryRechargeVoltage, "Battery re-charge voltage", FormatFloat, UnitVolts),
		custom(610, IDBatteryUnderVoltage, "Battery under voltage", FormatFloat, UnitVolts),
		custom(611, IDBatteryBulkVoltage, "Battery bulk voltage", FormatFloat, UnitVolts),
		custom(612, IDBatteryFloatVoltage, "Battery float voltage", FormatFloat, UnitVolts),
		custom(613, IDBatteryType, "Battery type", FormatString, UnitNone),
	}
}

func firmwareDefinitions() []Definition {
	return []Definition{
		custom(201, IDProtocolID, "Protocol ID", FormatUint32, UnitNone),
		custom(202, IDFirmwareVersion, "Firmware version", FormatString, UnitNone),
		custom(203, IDFirmwareVersionSecondary, "Firmware version 2", FormatString, UnitNone),
	}
}
