package inverter

import "fmt"

// QueryKind identifies one telemetry query. The set is closed: the controller
// switches over every kind and drivers reject anything else.
type QueryKind uint8

// Query kinds.
const (
	QueryStatus QueryKind = iota + 1
	QueryMode
	QuerySerialNumber
	QueryProtocolID
	QueryWarnings
	QueryFlags
	QueryFirmwareVersion
	QueryFirmwareVersionSecondary
	QueryRating
)

// AllQueries lists every query kind in the order a full refresh issues them.
// Identity first so log lines and telemetry can carry the serial number.
var AllQueries = []QueryKind{
	QuerySerialNumber,
	QueryProtocolID,
	QueryFirmwareVersion,
	QueryFirmwareVersionSecondary,
	QueryMode,
	QueryStatus,
	QueryWarnings,
	QueryFlags,
	QueryRating,
}

var queryNames = map[QueryKind]string{
	QueryStatus:                   "status",
	QueryMode:                     "mode",
	QuerySerialNumber:             "serial_number",
	QueryProtocolID:               "protocol_id",
	QueryWarnings:                 "warnings",
	QueryFlags:                    "flags",
	QueryFirmwareVersion:          "firmware_version",
	QueryFirmwareVersionSecondary: "firmware_version_secondary",
	QueryRating:                   "rating",
}

// String returns the snake_case name used in logs and metric labels.
func (q QueryKind) String() string {
	if name, ok := queryNames[q]; ok {
		return name
	}
	return fmt.Sprintf("query(%d)", uint8(q))
}

// Valid reports whether q is one of the defined query kinds.
func (q QueryKind) Valid() bool {
	_, ok := queryNames[q]
	return ok
}
