// Package influxdb records inverter telemetry in InfluxDB v2.
//
// Every successful status refresh becomes one "inverter_status" point tagged
// with the inverter serial number. Writes go through the client library's
// batching write API; asynchronous failures are reported through
// SetOnError. The package is optional and only wired when influxdb.enabled
// is set.
package influxdb
