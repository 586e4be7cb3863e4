package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/format"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/inverter"
)

func parseFlags(t *testing.T, args ...string) (*Options, *pflag.FlagSet) {
	t.Helper()
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return opts, fs
}

func TestOptions_ApplyOnlyChangedFlags(t *testing.T) {
	opts, fs := parseFlags(t, "--path", "/dev/hidraw3", "--refresh-interval", "5", "--port", "51826", "--setup-code", "031-45-154")

	cfg := config.Default()
	cfg.Accessory.Model = "PIP-5048MG"
	cfg.Database.Path = "/var/lib/solarbridge/db"
	opts.Apply(cfg, fs)

	if cfg.Device.Path != "/dev/hidraw3" {
		t.Errorf("Device.Path = %q", cfg.Device.Path)
	}
	if cfg.Refresh.Interval != 5 {
		t.Errorf("Refresh.Interval = %d", cfg.Refresh.Interval)
	}
	if cfg.API.Port != 51826 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
	if cfg.Accessory.SetupCode != "031-45-154" {
		t.Errorf("SetupCode = %q", cfg.Accessory.SetupCode)
	}
	// Unset flags keep file values.
	if cfg.Accessory.Model != "PIP-5048MG" {
		t.Errorf("Model = %q, want file value", cfg.Accessory.Model)
	}
	if cfg.Database.Path != "/var/lib/solarbridge/db" {
		t.Errorf("Database.Path = %q, want file value", cfg.Database.Path)
	}
}

func TestOptions_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
device:
  driver: sim
  path: test
refresh:
  interval: 30
accessory:
  model: PIP-5048MG
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	opts, fs := parseFlags(t, "--config", path, "--refresh-interval", "2")
	cfg, err := opts.LoadConfig(fs)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Device.Driver != "sim" || cfg.Accessory.Model != "PIP-5048MG" {
		t.Errorf("file values not loaded: %+v", cfg.Device)
	}
	if cfg.Refresh.Interval != 2 {
		t.Errorf("flag should override file: interval = %d", cfg.Refresh.Interval)
	}
}

func TestOptions_LoadConfigRejectsShortInterval(t *testing.T) {
	opts, fs := parseFlags(t, "--refresh-interval", "0")
	_, err := opts.LoadConfig(fs)
	if err == nil || !strings.Contains(err.Error(), "refresh.interval must be at least 1 second") {
		t.Errorf("err = %v", err)
	}
}

func TestOptions_LoadConfigMissingFile(t *testing.T) {
	opts, fs := parseFlags(t, "--config", "/nonexistent/path/config.yaml")
	if _, err := opts.LoadConfig(fs); err == nil {
		t.Error("expected error for missing config file")
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute(%v) error = %v", args, err)
	}
	return out.String()
}

func TestCharacteristicsCommand(t *testing.T) {
	out := execute(t, "characteristics")
	for _, want := range []string{"SERVICE", accessory.IDBatteryLevel, accessory.FlagID(inverter.FlagBuzzer), accessory.IDOutputRatingFrequency} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSetupCodeCommand(t *testing.T) {
	out := execute(t, "setup-code", "--setup-id", "7OSX")
	if !strings.Contains(out, "X-HM://") || !strings.Contains(out, "7OSX") {
		t.Errorf("output = %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	if out := execute(t, "version"); !strings.Contains(out, version) {
		t.Errorf("output = %q", out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func simConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Device.Driver = inverter.SimDriverName
	cfg.Device.Path = t.Name()
	cfg.Database.Path = filepath.Join(t.TempDir(), "solarbridge.db")
	cfg.Discovery.Enabled = false
	cfg.MQTT.Enabled = false
	cfg.InfluxDB.Enabled = false
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = freePort(t)
	cfg.Accessory.SetupCode = "031-45-154"
	return cfg
}

func TestRun_UnknownDriver(t *testing.T) {
	cfg := simConfig(t)
	cfg.Device.Driver = "nope"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := run(ctx, cfg, logging.Discard()); err == nil {
		t.Fatal("run() should fail for an unknown driver")
	}
}

// lockedBuffer is a log sink safe for the goroutines run starts.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_ServesSimulatedInverter(t *testing.T) {
	cfg := simConfig(t)
	var logs lockedBuffer
	log := logging.NewWithWriter(config.LoggingConfig{Format: "json"}, "test", &logs)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg, log) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.API.Port)
	var health map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/api/v1/health")
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never became ready: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if health["status"] != "ok" || health["paired"] != false {
		t.Errorf("health = %v", health)
	}

	resp, err := http.Get(base + "/api/v1/characteristics/" + accessory.IDSerialNumber)
	if err != nil {
		t.Fatal(err)
	}
	var cv accessory.CharacteristicView
	err = json.NewDecoder(resp.Body).Decode(&cv)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := cv.Value.(string); s == "" {
		t.Errorf("serial number not populated by startup refresh: %+v", cv)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	// An unpaired accessory tells the user how to pair at startup.
	out := logs.String()
	if !strings.Contains(out, `"setup_code":"031-45-154"`) || !strings.Contains(out, `"setup_uri":"X-HM://`) {
		t.Errorf("startup log has no pairing instructions:\n%s", out)
	}
}

func TestNewAccessory_ProfileOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Accessory.Model = accessory.DefaultModel
	base, _ := accessory.LookupProfile(accessory.DefaultModel)

	got := newAccessory(cfg, logging.Discard()).Profile()
	if got != base {
		t.Errorf("profile without overrides = %+v, want %+v", got, base)
	}

	cfg.Profile.LowBatteryThreshold = 35
	cfg.Profile.OutletInUse = string(format.OutletRuleActivePower)
	got = newAccessory(cfg, logging.Discard()).Profile()
	if got.LowBatteryThreshold != 35 || got.OutletRule != format.OutletRuleActivePower || got.Model != base.Model {
		t.Errorf("profile with overrides = %+v", got)
	}
}
