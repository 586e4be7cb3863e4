package inverter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulator_AnswersEveryQueryWithMatchingKind(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	dev, err := sim.Open(ctx, "/dev/null")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer dev.Close()

	for _, q := range AllQueries {
		resp, err := dev.Query(ctx, q)
		if err != nil {
			t.Fatalf("Query(%s) error = %v", q, err)
		}
		if resp.Kind() != q {
			t.Errorf("Query(%s) returned %T for %s", q, resp, resp.Kind())
		}
	}

	if got := len(sim.Queries()); got != len(AllQueries) {
		t.Errorf("recorded %d queries, want %d", got, len(AllQueries))
	}
}

func TestSimulator_UnknownQuery(t *testing.T) {
	sim := NewSimulator()
	dev, _ := sim.Open(context.Background(), "")
	_, err := dev.Query(context.Background(), QueryKind(42))
	if !errors.Is(err, ErrUnknownQuery) {
		t.Errorf("error = %v, want ErrUnknownQuery", err)
	}
}

func TestSimulator_FailureInjection(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	sim.FailOpen(ErrTransport)
	if _, err := sim.Open(ctx, ""); !errors.Is(err, ErrTransport) {
		t.Fatalf("Open() error = %v, want ErrTransport", err)
	}
	sim.FailOpen(nil)

	sim.FailQuery(QueryWarnings, ErrTransport)
	dev, _ := sim.Open(ctx, "")
	if _, err := dev.Query(ctx, QueryWarnings); !errors.Is(err, ErrTransport) {
		t.Errorf("Query(warnings) error = %v, want ErrTransport", err)
	}
	if _, err := dev.Query(ctx, QueryStatus); err != nil {
		t.Errorf("Query(status) error = %v, want nil", err)
	}
	sim.FailQuery(QueryWarnings, nil)
	if _, err := dev.Query(ctx, QueryWarnings); err != nil {
		t.Errorf("Query(warnings) after reset error = %v", err)
	}

	sim.FailCommands(ErrRejected)
	if err := dev.Execute(ctx, EnableFlag(FlagPowerSaving)); !errors.Is(err, ErrRejected) {
		t.Errorf("Execute() error = %v, want ErrRejected", err)
	}
	if sim.Flags().Has(FlagPowerSaving) {
		t.Error("failed command must not change state")
	}
	if len(sim.Commands()) != 1 {
		t.Errorf("failed command should still be recorded, got %d", len(sim.Commands()))
	}
}

func TestSimulator_Execute(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()
	dev, _ := sim.Open(ctx, "")

	if err := dev.Execute(ctx, EnableFlag(FlagOverloadBypass)); err != nil {
		t.Fatalf("Execute(enable) error = %v", err)
	}
	if !sim.Flags().Has(FlagOverloadBypass) {
		t.Error("overload bypass should be enabled")
	}
	if err := dev.Execute(ctx, DisableFlag(FlagBuzzer)); err != nil {
		t.Fatalf("Execute(disable) error = %v", err)
	}
	if sim.Flags().Has(FlagBuzzer) {
		t.Error("buzzer should be disabled")
	}
	// Untouched flags keep their value.
	if !sim.Flags().Has(FlagBacklight) {
		t.Error("backlight should be untouched")
	}

	if err := dev.Execute(ctx, SetOutputFrequency{Hertz: 60}); err != nil {
		t.Fatalf("Execute(60 Hz) error = %v", err)
	}
	if got := sim.Status().OutputFrequency; got != 60 {
		t.Errorf("OutputFrequency = %v, want 60", got)
	}

	if err := dev.Execute(ctx, SetOutputFrequency{Hertz: 45}); !errors.Is(err, ErrRejected) {
		t.Errorf("Execute(45 Hz) error = %v, want ErrRejected", err)
	}
}

func TestSimulator_ClosedHandle(t *testing.T) {
	sim := NewSimulator()
	dev, _ := sim.Open(context.Background(), "")
	if err := dev.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := dev.Query(context.Background(), QueryMode); !errors.Is(err, ErrClosed) {
		t.Errorf("Query after Close error = %v, want ErrClosed", err)
	}
	if sim.Opens() != 1 || sim.Closes() != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", sim.Opens(), sim.Closes())
	}
}

func TestSimulator_LatencyHonoursContext(t *testing.T) {
	sim := NewSimulator()
	sim.SetLatency(time.Second)
	dev, _ := sim.Open(context.Background(), "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := dev.Query(ctx, QueryStatus)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want ErrTransport wrapping DeadlineExceeded", err)
	}
}
