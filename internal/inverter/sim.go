package inverter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimDriverName is the registry name of the simulated driver.
const SimDriverName = "sim"

func init() {
	Register(SimDriverName, &simRegistry{sims: make(map[string]*Simulator)})
}

// simRegistry hands out one Simulator per path so that state written through
// one handle is visible to the next, as with a real device.
type simRegistry struct {
	mu   sync.Mutex
	sims map[string]*Simulator
}

func (r *simRegistry) Open(ctx context.Context, path string) (Device, error) {
	r.mu.Lock()
	sim, ok := r.sims[path]
	if !ok {
		sim = NewSimulator()
		r.sims[path] = sim
	}
	r.mu.Unlock()
	return sim.Open(ctx, path)
}

// Simulator is an in-memory inverter. It implements Dialer, hands out handles
// that read and mutate shared state, and records what it was asked to do.
//
// Failure injection (FailOpen, FailQuery, FailCommands) and Latency let tests
// exercise the controller's error and concurrency paths without hardware.
type Simulator struct {
	mu sync.Mutex

	serial    SerialNumber
	protocol  ProtocolID
	firmware  FirmwareVersion
	firmware2 SecondaryFirmwareVersion
	mode      Mode
	status    GeneralStatus
	warnings  WarningSet
	flags     FlagSet
	rating    DeviceRating

	latency     time.Duration
	openErr     error
	queryErrs   map[QueryKind]error
	commandErr  error
	commands    []Command
	queries     []QueryKind
	opens       int
	active      int
	maxActive   int
	closedCount int
}

// NewSimulator returns a simulator preloaded with plausible readings for a
// 2.4 kVA, 24 V off-grid inverter.
func NewSimulator() *Simulator {
	return &Simulator{
		serial:    "92932004102453",
		protocol:  30,
		firmware:  FirmwareVersion{Major: 72, Minor: 70},
		firmware2: SecondaryFirmwareVersion{FirmwareVersion{Major: 43, Minor: 4}},
		mode:      ModeBattery,
		status: GeneralStatus{
			GridVoltage:            0,
			GridFrequency:          0,
			OutputVoltage:          230.1,
			OutputFrequency:        50.0,
			OutputApparentPower:    345,
			OutputActivePower:      290,
			OutputLoadPercent:      14,
			BusVoltage:             391,
			BatteryVoltage:         26.45,
			BatteryChargingCurrent: 12,
			BatteryCapacity:        78,
			HeatSinkTemperature:    38,
			SolarInputCurrent:      14,
			SolarInputVoltage:      78.3,
			SCCBatteryVoltage:      26.51,
			Status:                 StatusSCCCharging | StatusCharging | StatusLoadOn,
		},
		flags: NewFlagSet(FlagBuzzer, FlagBacklight, FlagAlarm, FlagRecordFault),
		rating: DeviceRating{
			GridRatingVoltage:         230.0,
			GridRatingCurrent:         10.4,
			OutputRatingVoltage:       230.0,
			OutputRatingFrequency:     50.0,
			OutputRatingCurrent:       10.4,
			OutputRatingApparentPower: 2400,
			OutputRatingActivePower:   2400,
			BatteryRatingVoltage:      24.0,
			BatteryRechargeVoltage:    23.0,
			BatteryUnderVoltage:       21.0,
			BatteryBulkVoltage:        28.2,
			BatteryFloatVoltage:       27.0,
			BatteryType:               BatteryAGM,
		},
		queryErrs: make(map[QueryKind]error),
	}
}

// Open implements Dialer.
func (s *Simulator) Open(ctx context.Context, _ string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	return &simHandle{sim: s}, nil
}

// SetLatency makes every query and command take at least d.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// FailOpen makes Open return err; nil restores normal behaviour.
func (s *Simulator) FailOpen(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

// FailQuery makes queries of kind return err; nil restores normal behaviour.
func (s *Simulator) FailQuery(kind QueryKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.queryErrs, kind)
		return
	}
	s.queryErrs[kind] = err
}

// FailCommands makes every command return err without applying it.
func (s *Simulator) FailCommands(err error) {
	s.mu.Lock()
	s.commandErr = err
	s.mu.Unlock()
}

// SetStatus replaces the general status reading.
func (s *Simulator) SetStatus(st GeneralStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// SetMode replaces the reported mode.
func (s *Simulator) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetWarnings replaces the warning set.
func (s *Simulator) SetWarnings(w WarningSet) {
	s.mu.Lock()
	s.warnings = w
	s.mu.Unlock()
}

// SetFlags replaces the enabled flag set.
func (s *Simulator) SetFlags(f FlagSet) {
	s.mu.Lock()
	s.flags = f
	s.mu.Unlock()
}

// SetSerialNumber replaces the serial number.
func (s *Simulator) SetSerialNumber(sn SerialNumber) {
	s.mu.Lock()
	s.serial = sn
	s.mu.Unlock()
}

// Status returns the current general status reading.
func (s *Simulator) Status() GeneralStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Flags returns the enabled flag set.
func (s *Simulator) Flags() FlagSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Commands returns every command received, including failed ones.
func (s *Simulator) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// Queries returns every query received, in order.
func (s *Simulator) Queries() []QueryKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueryKind, len(s.queries))
	copy(out, s.queries)
	return out
}

// Opens returns how many handles have been opened.
func (s *Simulator) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many handles have been closed.
func (s *Simulator) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedCount
}

// MaxConcurrent returns the highest number of operations that were ever in
// progress at the same time across all handles.
func (s *Simulator) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// begin marks an operation in progress and returns the latency to apply.
func (s *Simulator) begin() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	return s.latency
}

func (s *Simulator) end() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *Simulator) answer(kind QueryKind) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, kind)
	if err := s.queryErrs[kind]; err != nil {
		return nil, err
	}

	switch kind {
	case QueryStatus:
		return s.status, nil
	case QueryMode:
		return s.mode, nil
	case QuerySerialNumber:
		return s.serial, nil
	case QueryProtocolID:
		return s.protocol, nil
	case QueryWarnings:
		return s.warnings, nil
	case QueryFlags:
		return s.flags, nil
	case QueryFirmwareVersion:
		return s.firmware, nil
	case QueryFirmwareVersionSecondary:
		return s.firmware2, nil
	case QueryRating:
		return s.rating, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, kind)
	}
}

func (s *Simulator) apply(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd)
	if s.commandErr != nil {
		return s.commandErr
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	switch c := cmd.(type) {
	case SetFlags:
		s.flags = (s.flags | c.Enable) &^ c.Disable
	case SetOutputFrequency:
		s.rating.OutputRatingFrequency = float64(c.Hertz)
		s.status.OutputFrequency = float64(c.Hertz)
	default:
		return fmt.Errorf("%w: unsupported command %T", ErrRejected, cmd)
	}
	return nil
}

// simHandle is one open handle on a Simulator.
type simHandle struct {
	sim    *Simulator
	mu     sync.Mutex
	closed bool
}

func (h *simHandle) Query(ctx context.Context, kind QueryKind) (Response, error) {
	if err := h.enter(ctx); err != nil {
		return nil, err
	}
	defer h.sim.end()
	return h.sim.answer(kind)
}

func (h *simHandle) Execute(ctx context.Context, cmd Command) error {
	if err := h.enter(ctx); err != nil {
		return err
	}
	defer h.sim.end()
	return h.sim.apply(cmd)
}

// enter checks the handle is usable, marks the operation active and waits out
// the simulated latency. On success the caller must call sim.end.
func (h *simHandle) enter(ctx context.Context) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	latency := h.sim.begin()
	if latency <= 0 {
		return nil
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		h.sim.end()
		return fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	}
}

func (h *simHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	h.sim.mu.Lock()
	h.sim.closedCount++
	h.sim.mu.Unlock()
	return nil
}
