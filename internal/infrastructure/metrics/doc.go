// Package metrics exposes the bridge's Prometheus metrics: refresh sessions
// and their duration, coalesced refresh requests, failed queries by kind,
// commands by outcome, the pairing state and the WebSocket client count.
package metrics
