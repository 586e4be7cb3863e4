// Package accessory is the bridge's accessory state model: a fixed tree of
// typed characteristics grouped into information, inverter, battery, rating
// and firmware services.
//
// The tree is built once at startup. The synchronization controller writes it
// through the Update methods, one per telemetry query kind, so that a failed
// query leaves only its own characteristics untouched. Readers (the HTTP API,
// the MQTT bridge, history) see each characteristic's value atomically and
// receive changes through Subscribe; nothing polls.
//
// Client writes go through RequestWrite, which checks permissions, converts
// the value and hands it to the installed WriteHandler. The stored value is
// not touched by a write; it changes when the next refresh reads the device.
//
// Profiles select the product-specific derivation rules: the low-battery
// threshold and the outlet-in-use rule.
package accessory
