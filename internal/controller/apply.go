package controller

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// Write targets understood by HandleWrite. Flag targets are FlagTargetPrefix
// followed by the flag name, e.g. "flag_buzzer".
const (
	FlagTargetPrefix      = "flag_"
	TargetOutputFrequency = "output_rating_frequency"
)

// WriteRequest is a client request to change one characteristic.
type WriteRequest struct {
	// Target is the characteristic ID.
	Target string
	// Value is the requested value, already converted to the characteristic's
	// format: bool for flags, float64 for the output frequency.
	Value any
}

// Targets lists every write target HandleWrite maps to a device command.
func Targets() []string {
	flags := inverter.AllFlags()
	out := make([]string, 0, len(flags)+1)
	for _, f := range flags {
		out = append(out, FlagTargetPrefix+f.Name())
	}
	return append(out, TargetOutputFrequency)
}

// HandleWrite turns a write request into at most one device command. Unknown
// targets are ignored at debug level; values outside the target's valid set
// are logged and no command is sent. Device errors are logged by Apply.
func (c *Controller) HandleWrite(ctx context.Context, req WriteRequest) {
	if name, ok := strings.CutPrefix(req.Target, FlagTargetPrefix); ok {
		if f, ok := inverter.ParseFlag(name); ok {
			c.writeFlag(ctx, f, req.Value)
			return
		}
	}
	if req.Target == TargetOutputFrequency {
		c.writeFrequency(ctx, req.Value)
		return
	}

	c.logger.Debug("ignoring write", "target", req.Target, "error", ErrUnrecognizedWriteTarget)
}

func (c *Controller) writeFlag(ctx context.Context, f inverter.Flag, value any) {
	enable, ok := value.(bool)
	if !ok {
		c.logger.Error("write rejected",
			"target", FlagTargetPrefix+f.Name(),
			"value", value,
			"error", ErrInvalidRequestedValue)
		return
	}

	var cmd inverter.Command = inverter.DisableFlag(f)
	if enable {
		cmd = inverter.EnableFlag(f)
	}
	_ = c.Apply(ctx, cmd)
}

func (c *Controller) writeFrequency(ctx context.Context, value any) {
	hz, ok := wholeNumber(value)
	if !ok || !inverter.ValidOutputFrequency(hz) {
		c.logger.Error("write rejected",
			"target", TargetOutputFrequency,
			"value", value,
			"valid_values", inverter.OutputFrequencies,
			"error", ErrInvalidRequestedValue)
		return
	}
	_ = c.Apply(ctx, inverter.SetOutputFrequency{Hertz: hz})
}

func wholeNumber(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint32:
		return int(n), true
	default:
		return 0, false
	}
}

// Apply sends one command and then, whatever the outcome, schedules a
// refresh after the command's settle delay. The command is not cancelled if
// ctx ends while it is in flight. Commands that fail validation never reach
// the device and schedule nothing.
func (c *Controller) Apply(ctx context.Context, cmd inverter.Command) error {
	if err := cmd.Validate(); err != nil {
		c.logger.Error("command not sent", "command", cmd.Name(), "error", err)
		return err
	}

	err := c.withDevice(context.WithoutCancel(ctx), func(ctx context.Context, dev inverter.Device) error {
		return dev.Execute(ctx, cmd)
	})

	c.commandsSent.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CommandCompleted(cmd.Name(), err)
	}
	if err != nil {
		c.commandsFailed.Add(1)
		c.logger.Error("command failed", "command", cmd.Name(), "detail", cmd, "error", err)
	} else {
		c.logger.Info("command applied", "command", cmd.Name(), "detail", cmd)
	}

	c.scheduleRefresh(c.settleFor(cmd))
	return err
}

func (c *Controller) settleFor(cmd inverter.Command) time.Duration {
	if _, ok := cmd.(inverter.SetOutputFrequency); ok {
		return c.opts.FrequencySettle
	}
	return c.opts.FlagSettle
}

// scheduleRefresh requests a write-attributed refresh after delay.
func (c *Controller) scheduleRefresh(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.timers, t)
		c.mu.Unlock()
		c.RequestRefresh(ReasonWrite)
	})
	c.timers[t] = struct{}{}
}
