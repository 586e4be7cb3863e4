package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/solar-bridge/internal/controller"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
)

const defaultHealthInterval = 30 * time.Second

// StatsSource reports the controller's counters.
type StatsSource interface {
	Stats() controller.Stats
}

// HealthPublisher is the part of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporter publishes a retained health message at a fixed interval.
// The bridge is degraded while MQTT is disconnected or when no refresh has
// completed within staleAfter.
type HealthReporter struct {
	topic      string
	serial     string
	version    string
	interval   time.Duration
	staleAfter time.Duration
	publisher  HealthPublisher
	stats      StatsSource
	logger     *logging.Logger
	startTime  time.Time
	now        func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	Topic      string
	Serial     string
	Version    string
	Interval   time.Duration
	StaleAfter time.Duration
	Publisher  HealthPublisher
	Stats      StatsSource
	Logger     *logging.Logger
}

// NewHealthReporter returns a reporter; call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthReporter{
		topic:      cfg.Topic,
		serial:     cfg.Serial,
		version:    cfg.Version,
		interval:   interval,
		staleAfter: cfg.StaleAfter,
		publisher:  cfg.Publisher,
		stats:      cfg.Stats,
		logger:     logger,
		startTime:  time.Now(),
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start publishes immediately and then every interval until Stop or ctx
// cancellation.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("health publish failed", "topic", h.topic, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the loop and publishes a final "stopping" status.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.report(HealthStopping, "") //nolint:errcheck // best effort during shutdown
	})
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	return h.report(h.assess())
}

// assess reports degraded while MQTT is down or the newest refresh is older
// than staleAfter.
func (h *HealthReporter) assess() (HealthStatus, string) {
	switch {
	case h.publisher == nil || !h.publisher.IsConnected():
		return HealthDegraded, "MQTT disconnected"
	case h.stats == nil || h.staleAfter <= 0:
		return HealthHealthy, ""
	}
	last := h.stats.Stats().LastRefresh
	if last.IsZero() {
		return HealthDegraded, "no refresh has completed"
	}
	if age := h.now().Sub(last); age > h.staleAfter {
		return HealthDegraded, "inverter state is stale"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) report(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}
	now := h.now()
	msg := HealthMessage{
		Status:        status,
		Serial:        h.serial,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.startTime) / time.Second),
		Reason:        reason,
		Timestamp:     now.UTC(),
	}
	if h.stats != nil {
		st := h.stats.Stats()
		msg.Statistics = &HealthStatistics{
			Refreshes:      st.Refreshes,
			QueryFailures:  st.QueryFailures,
			CommandsSent:   st.CommandsSent,
			CommandsFailed: st.CommandsFailed,
		}
		if !st.LastRefresh.IsZero() {
			at := st.LastRefresh.UTC()
			msg.Statistics.LastRefresh = &at
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding health message: %w", err)
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}
