// Package inverter models the solar inverter as seen by the bridge: the closed
// set of telemetry queries, their typed responses, the commands the bridge may
// issue, and the Device/Dialer boundary a transport driver implements.
//
// The wire protocol is not part of this package. Drivers translate QueryKind
// and Command values into frames on their own; the bridge only ever sees the
// decoded Response values defined here.
//
// # Drivers
//
// Drivers register under a name, in the style of database/sql:
//
//	inverter.Register("hidraw", myDialer)
//	dialer, err := inverter.Lookup(cfg.Device.Driver)
//
// The "sim" driver is always registered. It serves a Simulator per device
// path and is what the tests and development runs use.
//
// # Handles
//
// A Device handle is opened for one operation and closed afterwards. Callers
// must not assume a handle survives between calls, and a failure to open is
// reported as ErrTransport like any other I/O failure.
package inverter
