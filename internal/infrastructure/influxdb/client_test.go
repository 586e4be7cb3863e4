package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// testConfig points at a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "solarbridge-dev-token",
		Org:           "solarbridge",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local InfluxDB")
	}
	c, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Connect(ctx, cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	c.WriteInverterStatus("X", inverter.GeneralStatus{}) // must not panic
}

func TestStatusPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p := statusPoint("92932004102443", inverter.GeneralStatus{
		GridVoltage:       230.1,
		OutputActivePower: 512,
		BatteryCapacity:   87,
		Status:            inverter.StatusLoadOn | inverter.StatusCharging,
	}, ts)

	line := write.PointToLineProtocol(p, time.Second)
	for _, want := range []string{
		"inverter_status,serial=92932004102443 ",
		"grid_voltage=230.1",
		"output_active_power=512i",
		"battery_capacity=87i",
		"device_status=20i",
		" 1700000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestStatusPoint_UnknownSerial(t *testing.T) {
	line := write.PointToLineProtocol(statusPoint("", inverter.GeneralStatus{}, time.Now()), time.Second)
	if !strings.HasPrefix(line, "inverter_status,serial=unknown ") {
		t.Errorf("line = %q", line)
	}
}

func TestWriteInverterStatus_Integration(t *testing.T) {
	c := connectOrSkip(t)

	var writeErr error
	done := make(chan struct{}, 1)
	c.SetOnError(func(err error) {
		writeErr = err
		done <- struct{}{}
	})

	c.WriteInverterStatus("integration", inverter.GeneralStatus{BatteryCapacity: 50})
	c.Flush()

	select {
	case <-done:
		t.Errorf("write error = %v", writeErr)
	case <-time.After(200 * time.Millisecond):
	}

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_StopsWrites(t *testing.T) {
	c := connectOrSkip(t)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.IsConnected() {
		t.Error("connected after Close")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v", err)
	}
	c.WriteInverterStatus("closed", inverter.GeneralStatus{})
}

func TestWriteOptions(t *testing.T) {
	opts := writeOptions(config.InfluxDBConfig{})
	if opts.BatchSize() != defaultBatchSize || opts.FlushInterval() != 10_000 {
		t.Errorf("defaults = %d points / %d ms", opts.BatchSize(), opts.FlushInterval())
	}
	opts = writeOptions(testConfig())
	if opts.BatchSize() != 10 || opts.FlushInterval() != 1000 {
		t.Errorf("configured = %d points / %d ms", opts.BatchSize(), opts.FlushInterval())
	}
}
