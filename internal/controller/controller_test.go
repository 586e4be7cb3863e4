package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// recordingSink counts updates per query kind and keeps the latest values.
type recordingSink struct {
	mu      sync.Mutex
	calls   map[inverter.QueryKind]int
	status  inverter.GeneralStatus
	mode    inverter.Mode
	serial  inverter.SerialNumber
	flags   inverter.FlagSet
	rating  inverter.DeviceRating
	flagsCh chan inverter.FlagSet
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		calls:   make(map[inverter.QueryKind]int),
		flagsCh: make(chan inverter.FlagSet, 64),
	}
}

func (s *recordingSink) record(k inverter.QueryKind) {
	s.calls[k]++
}

func (s *recordingSink) UpdateStatus(v inverter.GeneralStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryStatus)
	s.status = v
}

func (s *recordingSink) UpdateMode(v inverter.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryMode)
	s.mode = v
}

func (s *recordingSink) UpdateSerialNumber(v inverter.SerialNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QuerySerialNumber)
	s.serial = v
}

func (s *recordingSink) UpdateProtocolID(inverter.ProtocolID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryProtocolID)
}

func (s *recordingSink) UpdateWarnings(inverter.WarningSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryWarnings)
}

func (s *recordingSink) UpdateFlags(v inverter.FlagSet) {
	s.mu.Lock()
	s.record(inverter.QueryFlags)
	s.flags = v
	s.mu.Unlock()
	s.flagsCh <- v
}

func (s *recordingSink) UpdateFirmwareVersion(inverter.FirmwareVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryFirmwareVersion)
}

func (s *recordingSink) UpdateSecondaryFirmwareVersion(inverter.SecondaryFirmwareVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryFirmwareVersionSecondary)
}

func (s *recordingSink) UpdateRating(v inverter.DeviceRating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(inverter.QueryRating)
	s.rating = v
}

func (s *recordingSink) count(k inverter.QueryKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[k]
}

func (s *recordingSink) currentMode() inverter.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *recordingSink) currentStatus() inverter.GeneralStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// waitFlags blocks until the sink sees a flag set matching want.
func (s *recordingSink) waitFlags(t *testing.T, want func(inverter.FlagSet) bool) inverter.FlagSet {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.flagsCh:
			if want(f) {
				return f
			}
		case <-deadline:
			t.Fatal("timed out waiting for flag update")
			return 0
		}
	}
}

// logEntry is one captured log call.
type logEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger records log calls for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg, args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

// hasArg reports whether any entry at level carries value for key.
func (l *captureLogger) hasArg(level, key string, match func(any) bool) bool {
	for _, e := range l.byLevel(level) {
		for i := 0; i+1 < len(e.args); i += 2 {
			if k, ok := e.args[i].(string); ok && k == key && match(e.args[i+1]) {
				return true
			}
		}
	}
	return false
}

// fakeMetrics records metric callbacks.
type fakeMetrics struct {
	mu        sync.Mutex
	reasons   []string
	coalesced int
	failed    []string
	commands  map[string]int
}

func (m *fakeMetrics) RefreshCompleted(reason string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

func (m *fakeMetrics) RefreshCoalesced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesced++
}

func (m *fakeMetrics) QueryFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, kind)
}

func (m *fakeMetrics) CommandCompleted(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commands == nil {
		m.commands = make(map[string]int)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commands[name+"/"+outcome]++
}

func (m *fakeMetrics) reasonList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reasons)
}

type fakeTelemetry struct {
	mu      sync.Mutex
	serials []string
}

func (f *fakeTelemetry) WriteInverterStatus(serial string, _ inverter.GeneralStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serials = append(f.serials, serial)
}

type fakePairing struct{ paired bool }

func (f fakePairing) Paired() bool    { return f.paired }
func (fakePairing) SetupCode() string { return "031-45-154" }
func (fakePairing) SetupURI() string  { return "X-HM://0023ISYWY1ABCD" }

type harness struct {
	sim     *inverter.Simulator
	sink    *recordingSink
	log     *captureLogger
	metrics *fakeMetrics
	ctrl    *Controller
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		sim:     inverter.NewSimulator(),
		sink:    newRecordingSink(),
		log:     &captureLogger{},
		metrics: &fakeMetrics{},
	}
	opts := Options{
		Dialer:          h.sim,
		Path:            "/dev/hidraw0",
		Sink:            h.sink,
		RefreshInterval: time.Hour,
		FlagSettle:      10 * time.Millisecond,
		FrequencySettle: 20 * time.Millisecond,
		Logger:          h.log,
		Metrics:         h.metrics,
		Pairing:         fakePairing{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(ctrl.Stop)
	h.ctrl = ctrl
	return h
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestNew_StartupRefresh(t *testing.T) {
	tel := &fakeTelemetry{}
	h := newHarness(t, func(o *Options) { o.Telemetry = tel })

	for _, k := range inverter.AllQueries {
		if got := h.sink.count(k); got != 1 {
			t.Errorf("%s updates = %d, want 1", k, got)
		}
	}
	if got := h.ctrl.SerialNumber(); got != "92932004102453" {
		t.Errorf("SerialNumber() = %q", got)
	}
	if h.sim.Opens() != len(inverter.AllQueries) || h.sim.Closes() != h.sim.Opens() {
		t.Errorf("opens = %d closes = %d, want one handle per query", h.sim.Opens(), h.sim.Closes())
	}
	if len(tel.serials) != 1 || tel.serials[0] != "92932004102453" {
		t.Errorf("telemetry serials = %v", tel.serials)
	}
	if got := h.ctrl.Stats().Refreshes; got != 1 {
		t.Errorf("Refreshes = %d, want 1", got)
	}
}

func TestNew_StrictStartup(t *testing.T) {
	injected := errors.New("no such device")

	tests := []struct {
		name   string
		breaks func(*inverter.Simulator)
	}{
		{"open fails", func(s *inverter.Simulator) { s.FailOpen(injected) }},
		{"first query fails", func(s *inverter.Simulator) { s.FailQuery(inverter.QuerySerialNumber, injected) }},
		{"last query fails", func(s *inverter.Simulator) { s.FailQuery(inverter.QueryRating, injected) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := inverter.NewSimulator()
			tt.breaks(sim)

			ctrl, err := New(context.Background(), Options{
				Dialer: sim,
				Sink:   newRecordingSink(),
				Logger: &captureLogger{},
			})
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("err = %v, want ErrDeviceUnavailable", err)
			}
			if !errors.Is(err, injected) {
				t.Errorf("err = %v, want cause preserved", err)
			}
			if ctrl != nil {
				t.Error("controller returned on failed startup")
			}
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	sim := inverter.NewSimulator()
	tests := []struct {
		name string
		opts Options
	}{
		{"no dialer", Options{Sink: newRecordingSink()}},
		{"no sink", Options{Dialer: sim}},
		{"interval too short", Options{Dialer: sim, Sink: newRecordingSink(), RefreshInterval: 500 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
	if sim.Opens() != 0 {
		t.Errorf("device opened %d times for invalid options", sim.Opens())
	}
}

func TestRequestRefresh_SingleFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.sim.SetLatency(5 * time.Millisecond)

	var chans []<-chan struct{}
	for i := 0; i < 10; i++ {
		chans = append(chans, h.ctrl.RequestRefresh(ReasonPeriodic))
	}
	for _, ch := range chans {
		waitClosed(t, ch)
	}

	if got := h.sim.MaxConcurrent(); got != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", got)
	}
	stats := h.ctrl.Stats()
	// Startup, the session started by the first request, one follow-up.
	if stats.Refreshes != 3 {
		t.Errorf("Refreshes = %d, want 3", stats.Refreshes)
	}
	if stats.Coalesced != 8 {
		t.Errorf("Coalesced = %d, want 8", stats.Coalesced)
	}
}

func TestRequestRefresh_ConcurrentCallers(t *testing.T) {
	h := newHarness(t, nil)
	h.sim.SetLatency(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.ctrl.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := h.sim.MaxConcurrent(); got != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", got)
	}
	if got := h.ctrl.Stats().Refreshes; got > 21 {
		t.Errorf("Refreshes = %d, more than one per request", got)
	}
}

func TestRequestRefresh_WriteReasonWins(t *testing.T) {
	h := newHarness(t, nil)
	h.sim.SetLatency(5 * time.Millisecond)

	first := h.ctrl.RequestRefresh(ReasonPeriodic)
	h.ctrl.RequestRefresh(ReasonWrite)
	last := h.ctrl.RequestRefresh(ReasonPeriodic)
	waitClosed(t, first)
	waitClosed(t, last)

	want := []string{"startup", "periodic", "write"}
	if got := h.metrics.reasonList(); !slices.Equal(got, want) {
		t.Errorf("reasons = %v, want %v", got, want)
	}
}

func TestRefresh_QueryFailureWithholdsOnlyItsFields(t *testing.T) {
	h := newHarness(t, nil)

	h.sim.FailQuery(inverter.QueryMode, fmt.Errorf("%w: timeout", inverter.ErrTransport))
	h.sim.SetMode(inverter.ModeLine)
	st := h.sim.Status()
	st.BatteryCapacity = 41
	h.sim.SetStatus(st)

	if err := h.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if got := h.sink.currentMode(); got != inverter.ModeBattery {
		t.Errorf("mode = %s, want previous value Battery", got)
	}
	if got := h.sink.currentStatus().BatteryCapacity; got != 41 {
		t.Errorf("battery capacity = %d, want 41", got)
	}
	if got := h.sink.count(inverter.QueryRating); got != 2 {
		t.Errorf("rating updates = %d, want 2 (later queries still run)", got)
	}
	if got := h.ctrl.Stats().QueryFailures; got != 1 {
		t.Errorf("QueryFailures = %d, want 1", got)
	}
	if !h.log.hasArg("warn", "query", func(v any) bool { return v == "mode" }) {
		t.Error("mode failure not logged")
	}
}

func TestHandleWrite_FlagThenRefreshObservesState(t *testing.T) {
	h := newHarness(t, nil)
	if h.sim.Flags().Has(inverter.FlagPowerSaving) {
		t.Fatal("power saving should start disabled")
	}

	h.ctrl.HandleWrite(context.Background(), WriteRequest{Target: "flag_power_saving", Value: true})

	cmds := h.sim.Commands()
	if len(cmds) != 1 {
		t.Fatalf("commands = %v, want exactly one", cmds)
	}
	want := inverter.EnableFlag(inverter.FlagPowerSaving)
	if cmds[0] != want {
		t.Errorf("command = %v, want %v", cmds[0], want)
	}

	h.sink.waitFlags(t, func(f inverter.FlagSet) bool { return f.Has(inverter.FlagPowerSaving) })
}

func TestHandleWrite_DisableSendsSingleFlag(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.HandleWrite(context.Background(), WriteRequest{Target: "flag_buzzer", Value: false})

	cmds := h.sim.Commands()
	if len(cmds) != 1 {
		t.Fatalf("commands = %v", cmds)
	}
	sf, ok := cmds[0].(inverter.SetFlags)
	if !ok || sf.Enable != 0 || sf.Disable != inverter.NewFlagSet(inverter.FlagBuzzer) {
		t.Errorf("command = %#v, want disable buzzer only", cmds[0])
	}
}

func TestHandleWrite_Frequency(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		wantSent bool
	}{
		{"60 Hz", 60.0, true},
		{"50 Hz as int", 50, true},
		{"55 Hz", 55.0, false},
		{"fractional", 50.5, false},
		{"wrong type", "60", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			h.ctrl.HandleWrite(context.Background(), WriteRequest{Target: TargetOutputFrequency, Value: tt.value})

			cmds := h.sim.Commands()
			if tt.wantSent {
				if len(cmds) != 1 {
					t.Fatalf("commands = %v, want one", cmds)
				}
				if _, ok := cmds[0].(inverter.SetOutputFrequency); !ok {
					t.Errorf("command = %T", cmds[0])
				}
				return
			}
			if len(cmds) != 0 {
				t.Errorf("commands = %v, want none", cmds)
			}
			if !h.log.hasArg("error", "error", func(v any) bool {
				err, ok := v.(error)
				return ok && errors.Is(err, ErrInvalidRequestedValue)
			}) {
				t.Error("rejected value not logged as ErrInvalidRequestedValue")
			}
		})
	}
}

func TestHandleWrite_UnknownTargetIsSilent(t *testing.T) {
	h := newHarness(t, nil)

	for _, target := range []string{"battery_level", "flag_", "flag_disco", ""} {
		h.ctrl.HandleWrite(context.Background(), WriteRequest{Target: target, Value: true})
	}

	if cmds := h.sim.Commands(); len(cmds) != 0 {
		t.Errorf("commands = %v, want none", cmds)
	}
	if errs := h.log.byLevel("error"); len(errs) != 0 {
		t.Errorf("error logs = %v, want none", errs)
	}
	if len(h.log.byLevel("debug")) == 0 {
		t.Error("expected a debug log for ignored writes")
	}
}

func TestApply_FailureStillRefreshes(t *testing.T) {
	h := newHarness(t, nil)
	injected := fmt.Errorf("%w: NAK", inverter.ErrRejected)
	h.sim.FailCommands(injected)

	before := h.sink.count(inverter.QueryFlags)
	err := h.ctrl.Apply(context.Background(), inverter.EnableFlag(inverter.FlagAlarm))
	if !errors.Is(err, inverter.ErrRejected) {
		t.Errorf("Apply() error = %v, want ErrRejected", err)
	}

	h.sink.waitFlags(t, func(inverter.FlagSet) bool { return h.sink.count(inverter.QueryFlags) > before })

	stats := h.ctrl.Stats()
	if stats.CommandsSent != 1 || stats.CommandsFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !h.log.hasArg("error", "command", func(v any) bool { return v == "set_flags" }) {
		t.Error("command failure not logged")
	}
}

func TestApply_InvalidCommandNeverSent(t *testing.T) {
	h := newHarness(t, nil)

	err := h.ctrl.Apply(context.Background(), inverter.SetOutputFrequency{Hertz: 55})
	if !errors.Is(err, inverter.ErrInvalidCommand) {
		t.Errorf("err = %v, want ErrInvalidCommand", err)
	}
	if cmds := h.sim.Commands(); len(cmds) != 0 {
		t.Errorf("commands = %v", cmds)
	}
}

func TestApply_SurvivesCancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	h.sim.SetLatency(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.ctrl.Apply(ctx, inverter.DisableFlag(inverter.FlagAlarm)); err != nil {
		t.Errorf("Apply() error = %v, want command to complete", err)
	}
	if h.sim.Flags().Has(inverter.FlagAlarm) {
		t.Error("alarm still enabled")
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.FlagSettle = time.Hour })

	if err := h.ctrl.Apply(context.Background(), inverter.EnableFlag(inverter.FlagBacklight)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	h.ctrl.Stop()
	h.ctrl.Stop()

	opens := h.sim.Opens()
	waitClosed(t, h.ctrl.RequestRefresh(ReasonManual))
	if h.sim.Opens() != opens {
		t.Error("device touched after Stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.ctrl.Run(ctx); err != nil {
		t.Errorf("Run() after Stop = %v", err)
	}
}

func TestRun_Periodic(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RefreshInterval = time.Second })

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := h.ctrl.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Let the last ticked session finish.
	waitClosed(t, h.ctrl.RequestRefresh(ReasonManual))
	if got := h.sink.count(inverter.QueryStatus); got < 3 {
		t.Errorf("status updates = %d, want startup plus periodic ticks", got)
	}
	if !slices.Contains(h.metrics.reasonList(), "periodic") {
		t.Error("no periodic refresh recorded")
	}
}

func TestHandlePairingStateChange(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.HandlePairingStateChange(false)
	if !h.log.hasArg("info", "setup_code", func(v any) bool { return v == "031-45-154" }) {
		t.Error("setup code not logged when unpaired")
	}
	if !h.log.hasArg("info", "setup_uri", func(v any) bool { return strings.HasPrefix(v.(string), "X-HM://") }) {
		t.Error("setup URI not logged when unpaired")
	}

	h.ctrl.HandlePairingStateChange(true)
	infos := h.log.byLevel("info")
	if infos[len(infos)-1].msg != "accessory paired" {
		t.Errorf("last info = %q", infos[len(infos)-1].msg)
	}
}

func TestPrintPairingInstructions(t *testing.T) {
	tests := []struct {
		name    string
		pairing PairingInfo
		level   string
		msg     string
		uri     bool
	}{
		{"unpaired", fakePairing{}, "info", "accessory is not paired", true},
		{"paired", fakePairing{paired: true}, "info", "accessory is paired", false},
		{"no pairing info", nil, "warn", "no pairing information", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) { o.Pairing = tt.pairing })
			h.ctrl.PrintPairingInstructions()

			var found bool
			for _, e := range h.log.byLevel(tt.level) {
				if strings.Contains(e.msg, tt.msg) {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s log containing %q", tt.level, tt.msg)
			}
			gotURI := h.log.hasArg("info", "setup_uri", func(any) bool { return true })
			if gotURI != tt.uri {
				t.Errorf("setup_uri logged = %v, want %v", gotURI, tt.uri)
			}
		})
	}
}

func TestHandleIdentify(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.HandleIdentify("MPP Solar")
	if !h.log.hasArg("info", "accessory", func(v any) bool { return v == "MPP Solar" }) {
		t.Error("identify not logged")
	}
}

func TestReason_String(t *testing.T) {
	if ReasonWrite.String() != "write" || Reason(9).String() != "reason(9)" {
		t.Error("unexpected reason names")
	}
	if ReasonWrite <= ReasonPeriodic {
		t.Error("write must outrank periodic")
	}
}

// Every writable characteristic except identify must reach a device command.
func TestTargets_CoverWritableCharacteristics(t *testing.T) {
	p, _ := accessory.LookupProfile(accessory.DefaultModel)
	acc := accessory.New(accessory.Info{Name: "MPP Solar"}, p)

	targets := Targets()
	for _, c := range acc.Characteristics() {
		if !c.Writable() || c.ID() == accessory.IDIdentify {
			continue
		}
		if !slices.Contains(targets, c.ID()) {
			t.Errorf("writable characteristic %q has no command", c.ID())
		}
	}
}

func TestController_WithAccessorySink(t *testing.T) {
	p, _ := accessory.LookupProfile(accessory.DefaultModel)
	acc := accessory.New(accessory.Info{Name: "MPP Solar"}, p)
	sim := inverter.NewSimulator()

	ctrl, err := New(context.Background(), Options{
		Dialer:     sim,
		Sink:       acc,
		Logger:     &captureLogger{},
		FlagSettle: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer ctrl.Stop()

	if got := acc.Value(accessory.IDSerialNumber); got != "92932004102453" {
		t.Errorf("serial = %v", got)
	}
	if got := acc.Value(accessory.IDBatteryLevel); got != uint8(78) {
		t.Errorf("battery level = %v", got)
	}

	changed := make(chan struct{}, 1)
	unsubscribe := acc.Subscribe(func(c accessory.Change) {
		if c.CharacteristicID == "flag_buzzer" && c.New == false {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	acc.OnWrite(func(ctx context.Context, id string, v any) {
		ctrl.HandleWrite(ctx, WriteRequest{Target: id, Value: v})
	})
	if err := acc.RequestWrite(context.Background(), "flag_buzzer", false); err != nil {
		t.Fatalf("RequestWrite() error = %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("buzzer change never observed")
	}
}
