package mqttbridge

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/nerrad567/solar-bridge/internal/accessory"
)

// StateMessage is the retained payload of a characteristic state topic.
type StateMessage struct {
	Characteristic string           `json:"characteristic"`
	Service        string           `json:"service"`
	Value          any              `json:"value"`
	Unit           accessory.Unit   `json:"unit,omitempty"`
	Format         accessory.Format `json:"format"`
	Timestamp      time.Time        `json:"timestamp"`
}

// AckStatus is the outcome of a write request.
type AckStatus string

const (
	// AckAccepted means the write was forwarded to the inverter. The state
	// topic changes once a refresh observes the new value.
	AckAccepted AckStatus = "accepted"

	// AckRejected means the request was refused before reaching the inverter.
	AckRejected AckStatus = "rejected"
)

// AckMessage answers a write request on the ack topic.
type AckMessage struct {
	Characteristic string    `json:"characteristic"`
	Status         AckStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// HealthStatus is the bridge's operational status.
type HealthStatus string

// Health statuses.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published on the health topic at a fixed interval.
type HealthMessage struct {
	Status        HealthStatus      `json:"status"`
	Serial        string            `json:"serial"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Reason        string            `json:"reason,omitempty"`
	Statistics    *HealthStatistics `json:"statistics,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// HealthStatistics mirrors the controller's counters.
type HealthStatistics struct {
	Refreshes      uint64     `json:"refreshes"`
	QueryFailures  uint64     `json:"query_failures"`
	CommandsSent   uint64     `json:"commands_sent"`
	CommandsFailed uint64     `json:"commands_failed"`
	LastRefresh    *time.Time `json:"last_refresh,omitempty"`
}

// EventMessage carries a one-off event such as identify or a pairing change.
type EventMessage struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// setRequest is the optional object form of a write payload.
type setRequest struct {
	Value any `json:"value"`
}

// decodeSetPayload accepts a JSON object with a "value" key, a bare JSON
// scalar, or plain text.
func decodeSetPayload(payload []byte) any {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req setRequest
		if err := json.Unmarshal(trimmed, &req); err == nil {
			return req.Value
		}
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}
