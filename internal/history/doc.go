// Package history keeps a local record of characteristic value changes in
// SQLite, so recent readings can be inspected without an external
// time-series database.
//
// A Recorder subscribes to the accessory and writes each change
// asynchronously; a SQLiteRepository serves the API's history queries and
// prunes entries past the retention period.
package history
