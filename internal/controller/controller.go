package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// Defaults applied by New when an option is left zero.
const (
	DefaultRefreshInterval = 10 * time.Second
	DefaultFlagSettle      = 1 * time.Second
	DefaultFrequencySettle = 5 * time.Second
	DefaultDeviceTimeout   = 5 * time.Second

	// MinRefreshInterval is the shortest accepted polling period.
	MinRefreshInterval = time.Second
)

// StateSink receives query results. Each method handles exactly one query kind
// and must not fail; *accessory.Accessory is the production implementation.
type StateSink interface {
	UpdateStatus(inverter.GeneralStatus)
	UpdateMode(inverter.Mode)
	UpdateSerialNumber(inverter.SerialNumber)
	UpdateProtocolID(inverter.ProtocolID)
	UpdateWarnings(inverter.WarningSet)
	UpdateFlags(inverter.FlagSet)
	UpdateFirmwareVersion(inverter.FirmwareVersion)
	UpdateSecondaryFirmwareVersion(inverter.SecondaryFirmwareVersion)
	UpdateRating(inverter.DeviceRating)
}

// Logger is the logging surface the controller needs. *logging.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder is notified of controller activity. Optional.
type MetricsRecorder interface {
	RefreshCompleted(reason string, duration time.Duration, failedQueries int)
	RefreshCoalesced()
	QueryFailed(kind string)
	CommandCompleted(name string, err error)
}

// TelemetryRecorder stores successful status readings. Optional.
type TelemetryRecorder interface {
	WriteInverterStatus(serial string, status inverter.GeneralStatus)
}

// PairingInfo supplies what a user needs to pair the accessory. Optional.
type PairingInfo interface {
	Paired() bool
	SetupCode() string
	SetupURI() string
}

// Options configures a Controller.
type Options struct {
	// Dialer opens the device. Required.
	Dialer inverter.Dialer

	// Path is the device locator passed to Dialer.Open.
	Path string

	// Sink receives every successful query result. Required.
	Sink StateSink

	// RefreshInterval is the Run polling period. Must be at least one second.
	RefreshInterval time.Duration

	// FlagSettle and FrequencySettle delay the refresh after each command kind.
	FlagSettle      time.Duration
	FrequencySettle time.Duration

	// DeviceTimeout bounds each open plus query or command.
	DeviceTimeout time.Duration

	Logger    Logger
	Metrics   MetricsRecorder
	Telemetry TelemetryRecorder
	Pairing   PairingInfo
}

// Stats are cumulative counters since New.
type Stats struct {
	Refreshes       uint64
	Coalesced       uint64
	QueryFailures   uint64
	CommandsSent    uint64
	CommandsFailed  uint64
	LastRefresh     time.Time
	LastRefreshTook time.Duration
}

// Controller owns the device. All methods are safe for concurrent use.
type Controller struct {
	opts   Options
	logger Logger

	// base carries values from New's context but is never cancelled, so
	// Stop does not abort an in-flight device operation.
	base context.Context

	// devMu is held for each open+query and each open+command.
	devMu sync.Mutex

	mu            sync.Mutex
	running       bool
	pending       bool
	pendingReason Reason
	nextWaiters   []chan struct{}
	timers        map[*time.Timer]struct{}
	stopped       bool
	serial        string
	lastRefresh   time.Time
	lastTook      time.Duration

	refreshes      atomic.Uint64
	coalesced      atomic.Uint64
	queryFailures  atomic.Uint64
	commandsSent   atomic.Uint64
	commandsFailed atomic.Uint64

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New validates opts and performs the startup refresh. Every query must
// succeed: any open or query failure returns an error wrapping
// ErrDeviceUnavailable and no Controller.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidOptions)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: state sink is required", ErrInvalidOptions)
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.RefreshInterval < MinRefreshInterval {
		return nil, fmt.Errorf("%w: refresh interval %s is below %s", ErrInvalidOptions, opts.RefreshInterval, MinRefreshInterval)
	}
	if opts.FlagSettle <= 0 {
		opts.FlagSettle = DefaultFlagSettle
	}
	if opts.FrequencySettle <= 0 {
		opts.FrequencySettle = DefaultFrequencySettle
	}
	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = DefaultDeviceTimeout
	}

	var logger Logger = logging.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}

	c := &Controller{
		opts:   opts,
		logger: logger,
		base:   context.WithoutCancel(ctx),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := c.session(ReasonStartup, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	c.logger.Info("controller started",
		"path", opts.Path,
		"serial", c.SerialNumber(),
		"refresh_interval", opts.RefreshInterval)
	return c, nil
}

// Run refreshes every RefreshInterval until ctx is done or Stop is called.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-ticker.C:
			c.RequestRefresh(ReasonPeriodic)
		}
	}
}

// Stop cancels pending settle timers and waits for the running refresh
// session, if any. Requests made after Stop complete immediately without
// touching the device.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		for t := range c.timers {
			t.Stop()
		}
		c.timers = nil
		c.mu.Unlock()

		close(c.done)
		c.wg.Wait()

		c.logger.Info("controller stopped")
	})
}

// SerialNumber returns the last serial number read from the device.
func (c *Controller) SerialNumber() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serial
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	last, took := c.lastRefresh, c.lastTook
	c.mu.Unlock()

	return Stats{
		Refreshes:       c.refreshes.Load(),
		Coalesced:       c.coalesced.Load(),
		QueryFailures:   c.queryFailures.Load(),
		CommandsSent:    c.commandsSent.Load(),
		CommandsFailed:  c.commandsFailed.Load(),
		LastRefresh:     last,
		LastRefreshTook: took,
	}
}

// withDevice opens the device, runs fn and closes it, all under devMu.
func (c *Controller) withDevice(ctx context.Context, fn func(ctx context.Context, dev inverter.Device) error) error {
	c.devMu.Lock()
	defer c.devMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.DeviceTimeout)
	defer cancel()

	dev, err := c.opts.Dialer.Open(ctx, c.opts.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.opts.Path, err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			c.logger.Debug("device close failed", "path", c.opts.Path, "error", cerr)
		}
	}()

	return fn(ctx, dev)
}
