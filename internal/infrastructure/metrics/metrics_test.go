package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func counterWithLabels(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	for _, metric := range family(t, m, name).GetMetric() {
		match := true
		for _, lp := range metric.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("%s%v not found", name, labels)
	return 0
}

func TestMetrics_Controller(t *testing.T) {
	m := New()

	m.RefreshCompleted("periodic", 120*time.Millisecond, 0)
	m.RefreshCompleted("periodic", 80*time.Millisecond, 1)
	m.RefreshCompleted("write", 90*time.Millisecond, 0)
	m.RefreshCoalesced()
	m.QueryFailed("status")
	m.CommandCompleted("set_flags", nil)
	m.CommandCompleted("set_flags", errors.New("nak"))

	if got := counterWithLabels(t, m, "solarbridge_refreshes_total", map[string]string{"reason": "periodic"}); got != 2 {
		t.Errorf("periodic refreshes = %v, want 2", got)
	}
	if got := family(t, m, "solarbridge_refresh_coalesced_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("coalesced = %v, want 1", got)
	}
	if got := counterWithLabels(t, m, "solarbridge_query_failures_total", map[string]string{"kind": "status"}); got != 1 {
		t.Errorf("query failures = %v, want 1", got)
	}
	if got := counterWithLabels(t, m, "solarbridge_commands_total", map[string]string{"command": "set_flags", "outcome": OutcomeFailed}); got != 1 {
		t.Errorf("failed commands = %v, want 1", got)
	}
	hist := family(t, m, "solarbridge_refresh_duration_seconds")
	var samples uint64
	for _, metric := range hist.GetMetric() {
		samples += metric.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("histogram samples = %d, want 3", samples)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()
	m.SetPaired(true)
	m.SetWebSocketClients(3)
	m.HistoryDropped(2)

	if got := family(t, m, "solarbridge_paired").GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("paired = %v, want 1", got)
	}
	m.SetPaired(false)
	if got := family(t, m, "solarbridge_paired").GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("paired = %v, want 0", got)
	}
	if got := family(t, m, "solarbridge_websocket_clients").GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("websocket clients = %v, want 3", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RefreshCoalesced()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"solarbridge_refresh_coalesced_total 1", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
