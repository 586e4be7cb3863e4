package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database,omitempty"`
	Version       string `json:"version"`
	Serial        string `json:"serial,omitempty"`
	Paired        *bool  `json:"paired,omitempty"`
	LastRefresh   string `json:"last_refresh,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// SystemMetrics is the JSON summary served at /api/v1/metrics. The
// Prometheus exposition lives at /metrics.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          *BackendMetrics    `json:"mqtt,omitempty"`
	InfluxDB      *BackendMetrics    `json:"influxdb,omitempty"`
	Controller    *ControllerMetrics `json:"controller,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// BackendMetrics is the state of an optional connection.
type BackendMetrics struct {
	Connected bool `json:"connected"`
}

// ControllerMetrics mirrors controller.Stats.
type ControllerMetrics struct {
	Refreshes       uint64  `json:"refreshes"`
	Coalesced       uint64  `json:"coalesced"`
	QueryFailures   uint64  `json:"query_failures"`
	CommandsSent    uint64  `json:"commands_sent"`
	CommandsFailed  uint64  `json:"commands_failed"`
	LastRefresh     string  `json:"last_refresh,omitempty"`
	LastRefreshTook float64 `json:"last_refresh_seconds"`
}

const (
	bytesPerMB        = 1024 * 1024
	healthProbeBudget = 2 * time.Second
)

func (s *Server) uptime() int64 {
	return int64(time.Since(s.startTime).Seconds())
}

// handleHealth answers 503 with status "degraded" when the database check
// fails. The device is not queried; last_refresh shows how fresh the state is.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: s.uptime(),
	}
	code := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeBudget)
		err := s.db.HealthCheck(ctx)
		cancel()
		resp.Database = "ok"
		if err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp.Status, resp.Database, code = "degraded", "unavailable", http.StatusServiceUnavailable
		}
	}
	if s.stats != nil {
		resp.Serial = s.stats.SerialNumber()
		if last := s.stats.Stats().LastRefresh; !last.IsZero() {
			resp.LastRefresh = last.UTC().Format(time.RFC3339)
		}
	}
	if s.pairing != nil {
		paired := s.pairing.Paired()
		resp.Paired = &paired
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: s.uptime(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount(), DroppedEvents: s.hub.Dropped()},
	}

	if s.mqtt != nil {
		m.MQTT = &BackendMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		m.InfluxDB = &BackendMetrics{Connected: s.influx.IsConnected()}
	}

	if s.stats != nil {
		st := s.stats.Stats()
		cm := &ControllerMetrics{
			Refreshes:       st.Refreshes,
			Coalesced:       st.Coalesced,
			QueryFailures:   st.QueryFailures,
			CommandsSent:    st.CommandsSent,
			CommandsFailed:  st.CommandsFailed,
			LastRefreshTook: st.LastRefreshTook.Seconds(),
		}
		if !st.LastRefresh.IsZero() {
			cm.LastRefresh = st.LastRefresh.UTC().Format(time.RFC3339)
		}
		m.Controller = cm
	}

	writeJSON(w, http.StatusOK, m)
}
