package inverter

import "fmt"

// Response is the decoded answer to a query. The concrete types below are the
// only implementations; switch on them with a type switch.
type Response interface {
	// Kind returns the query this response answers.
	Kind() QueryKind
	sealed()
}

// SerialNumber answers QuerySerialNumber.
type SerialNumber string

// ProtocolID answers QueryProtocolID, e.g. 30 for PI30 devices.
type ProtocolID int

// FirmwareVersion answers QueryFirmwareVersion.
type FirmwareVersion struct {
	Major int
	Minor int
}

// String formats the version the way the inverter panel shows it, e.g. 00072.70.
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%05d.%02d", v.Major, v.Minor)
}

// SecondaryFirmwareVersion answers QueryFirmwareVersionSecondary (the charge
// controller firmware on most models).
type SecondaryFirmwareVersion struct {
	FirmwareVersion
}

func (SerialNumber) Kind() QueryKind             { return QuerySerialNumber }
func (ProtocolID) Kind() QueryKind               { return QueryProtocolID }
func (FirmwareVersion) Kind() QueryKind          { return QueryFirmwareVersion }
func (SecondaryFirmwareVersion) Kind() QueryKind { return QueryFirmwareVersionSecondary }
func (Mode) Kind() QueryKind                     { return QueryMode }
func (GeneralStatus) Kind() QueryKind            { return QueryStatus }
func (WarningSet) Kind() QueryKind               { return QueryWarnings }
func (FlagSet) Kind() QueryKind                  { return QueryFlags }
func (DeviceRating) Kind() QueryKind             { return QueryRating }

func (SerialNumber) sealed()             {}
func (ProtocolID) sealed()               {}
func (FirmwareVersion) sealed()          {}
func (SecondaryFirmwareVersion) sealed() {}
func (Mode) sealed()                     {}
func (GeneralStatus) sealed()            {}
func (WarningSet) sealed()               {}
func (FlagSet) sealed()                  {}
func (DeviceRating) sealed()             {}
