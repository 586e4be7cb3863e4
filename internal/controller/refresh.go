package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/solar-bridge/internal/inverter"
)

// Reason records why a refresh session ran. Higher values win when requests
// are coalesced.
type Reason uint8

// Refresh reasons, in ascending priority.
const (
	ReasonStartup Reason = iota
	ReasonPeriodic
	ReasonManual
	ReasonWrite
)

// String returns the reason label used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonStartup:
		return "startup"
	case ReasonPeriodic:
		return "periodic"
	case ReasonManual:
		return "manual"
	case ReasonWrite:
		return "write"
	default:
		return fmt.Sprintf("reason(%d)", r)
	}
}

// RequestRefresh asks for a refresh session. If none is running one starts
// now; otherwise the request joins the single pending follow-up, which starts
// when the current session ends. The returned channel is closed once a
// session that started after the request has finished, or immediately if the
// controller is stopped.
func (c *Controller) RequestRefresh(reason Reason) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.stopped:
		close(done)
	case c.running:
		if c.pending {
			c.coalesced.Add(1)
			if c.opts.Metrics != nil {
				c.opts.Metrics.RefreshCoalesced()
			}
		}
		c.pending = true
		if reason > c.pendingReason {
			c.pendingReason = reason
		}
		c.nextWaiters = append(c.nextWaiters, done)
	default:
		c.running = true
		c.wg.Add(1)
		go c.worker(reason, []chan struct{}{done})
	}
	return done
}

// Refresh requests a session and waits for it. It returns ctx.Err() if ctx
// ends first; the session itself still runs.
func (c *Controller) Refresh(ctx context.Context) error {
	select {
	case <-c.RequestRefresh(ReasonManual):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker runs sessions back to back until nothing is pending.
func (c *Controller) worker(reason Reason, waiters []chan struct{}) {
	defer c.wg.Done()

	for {
		_ = c.session(reason, false)
		closeAll(waiters)

		c.mu.Lock()
		if !c.pending || c.stopped {
			rest := c.nextWaiters
			c.running = false
			c.pending = false
			c.pendingReason = ReasonStartup
			c.nextWaiters = nil
			c.mu.Unlock()

			// Only non-empty when stopped with a follow-up queued.
			closeAll(rest)
			return
		}
		reason, waiters = c.pendingReason, c.nextWaiters
		c.pending = false
		c.pendingReason = ReasonStartup
		c.nextWaiters = nil
		c.mu.Unlock()
	}
}

func closeAll(chs []chan struct{}) {
	for _, ch := range chs {
		close(ch)
	}
}

// session issues every query kind in order. In strict mode the first failure
// ends the session and is returned. Otherwise each failure is logged and only
// that query's fields keep their previous values.
func (c *Controller) session(reason Reason, strict bool) error {
	start := time.Now()
	failed := 0

	for _, kind := range inverter.AllQueries {
		resp, err := c.query(kind)
		if err != nil {
			failed++
			c.queryFailures.Add(1)
			if c.opts.Metrics != nil {
				c.opts.Metrics.QueryFailed(kind.String())
			}
			if strict {
				return err
			}
			c.logger.Warn("query failed", "query", kind.String(), "reason", reason.String(), "error", err)
			continue
		}
		c.dispatch(resp)
	}

	took := time.Since(start)
	c.refreshes.Add(1)
	c.mu.Lock()
	c.lastRefresh = start
	c.lastTook = took
	c.mu.Unlock()
	if c.opts.Metrics != nil {
		c.opts.Metrics.RefreshCompleted(reason.String(), took, failed)
	}

	c.logger.Debug("refresh complete",
		"reason", reason.String(),
		"failed_queries", failed,
		"duration", took)
	return nil
}

func (c *Controller) query(kind inverter.QueryKind) (inverter.Response, error) {
	var resp inverter.Response
	err := c.withDevice(c.base, func(ctx context.Context, dev inverter.Device) error {
		r, err := dev.Query(ctx, kind)
		if err != nil {
			return err
		}
		if r == nil || r.Kind() != kind {
			return fmt.Errorf("%w: driver answered %s with %T", inverter.ErrTransport, kind, r)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	return resp, nil
}

// dispatch copies one response into the sink.
func (c *Controller) dispatch(resp inverter.Response) {
	sink := c.opts.Sink

	switch r := resp.(type) {
	case inverter.GeneralStatus:
		sink.UpdateStatus(r)
		if c.opts.Telemetry != nil {
			c.opts.Telemetry.WriteInverterStatus(c.SerialNumber(), r)
		}
	case inverter.Mode:
		sink.UpdateMode(r)
	case inverter.SerialNumber:
		c.mu.Lock()
		c.serial = string(r)
		c.mu.Unlock()
		sink.UpdateSerialNumber(r)
	case inverter.ProtocolID:
		sink.UpdateProtocolID(r)
	case inverter.WarningSet:
		sink.UpdateWarnings(r)
	case inverter.FlagSet:
		sink.UpdateFlags(r)
	case inverter.FirmwareVersion:
		sink.UpdateFirmwareVersion(r)
	case inverter.SecondaryFirmwareVersion:
		sink.UpdateSecondaryFirmwareVersion(r)
	case inverter.DeviceRating:
		sink.UpdateRating(r)
	}
}
