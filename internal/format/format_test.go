package format

import (
	"math"
	"testing"
)

func TestTwoDecimals(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"already two decimals", 230.25, 230.25},
		{"truncates 12.345", 12.345, 12.34},
		// Rounding would give 1.24 here; truncation must win.
		{"truncates where rounding diverges", 1.239, 1.23},
		{"truncates 49.999", 49.999, 49.99},
		{"integer", 50, 50},
		{"zero", 0, 0},
		{"negative truncates toward zero", -3.456, -3.45},
		{"NaN becomes zero", math.NaN(), 0},
		{"infinity becomes zero", math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TwoDecimals(tt.in); got != tt.want {
				t.Errorf("TwoDecimals(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTwoDecimals_NotRounding(t *testing.T) {
	in := 1.239
	if rounded := math.Round(in*100) / 100; rounded == TwoDecimals(in) {
		t.Fatalf("expected truncation and rounding to differ for %v", in)
	}
}

func TestHas(t *testing.T) {
	const (
		a uint8 = 1 << 0
		b uint8 = 1 << 3
	)
	mask := a | b

	if !Has(mask, a) || !Has(mask, b) {
		t.Error("Has should report set bits")
	}
	if Has(mask, uint8(1<<1)) {
		t.Error("Has should report unset bit as false")
	}
	if Has(mask, 0) {
		t.Error("Has with a zero bit should be false")
	}
}

func TestSaturatingConversions(t *testing.T) {
	if got := Uint8(300); got != 255 {
		t.Errorf("Uint8(300) = %d, want 255", got)
	}
	if got := Uint8(-5); got != 0 {
		t.Errorf("Uint8(-5) = %d, want 0", got)
	}
	if got := Uint8(uint32(42)); got != 42 {
		t.Errorf("Uint8(42) = %d, want 42", got)
	}
	if got := Uint16(70000); got != math.MaxUint16 {
		t.Errorf("Uint16(70000) = %d, want %d", got, math.MaxUint16)
	}
	if got := Uint32(int64(-1)); got != 0 {
		t.Errorf("Uint32(-1) = %d, want 0", got)
	}
	if got := Uint32(uint64(math.MaxUint32) + 10); got != math.MaxUint32 {
		t.Errorf("Uint32(overflow) = %d, want %d", got, uint32(math.MaxUint32))
	}
	if got := Percent(140); got != 100 {
		t.Errorf("Percent(140) = %d, want 100", got)
	}
}

func TestCharge(t *testing.T) {
	tests := []struct {
		current float64
		want    ChargingState
	}{
		{0, NotCharging},
		{-2, NotCharging},
		{0.1, Charging},
		{25, Charging},
	}
	for _, tt := range tests {
		if got := Charge(tt.current); got != tt.want {
			t.Errorf("Charge(%v) = %v, want %v", tt.current, got, tt.want)
		}
	}
}

func TestLowBattery(t *testing.T) {
	for _, threshold := range []int{10, 25} {
		for capacity := 0; capacity <= 100; capacity++ {
			want := capacity < threshold
			if got := LowBattery(capacity, threshold); got != want {
				t.Errorf("LowBattery(%d, %d) = %v, want %v", capacity, threshold, got, want)
			}
		}
	}
}

func TestOutletInUse(t *testing.T) {
	tests := []struct {
		name        string
		rule        OutletRule
		load, power int
		want        bool
	}{
		{"load rule idle", OutletRuleLoadPercent, 0, 120, false},
		{"load rule busy", OutletRuleLoadPercent, 3, 0, true},
		{"power rule idle", OutletRuleActivePower, 5, 0, false},
		{"power rule busy", OutletRuleActivePower, 0, 80, true},
		{"unknown rule uses load", OutletRule("bogus"), 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutletInUse(tt.rule, tt.load, tt.power); got != tt.want {
				t.Errorf("OutletInUse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWarningTextAndFault(t *testing.T) {
	if got := WarningText(nil); got != NoWarnings {
		t.Errorf("WarningText(nil) = %q, want %q", got, NoWarnings)
	}
	if Fault(nil) {
		t.Error("Fault(nil) = true, want false")
	}

	warnings := []string{"Fan locked", "Battery low alarm"}
	if got := WarningText(warnings); got != "Fan locked, Battery low alarm" {
		t.Errorf("WarningText() = %q", got)
	}
	if !Fault(warnings) {
		t.Error("Fault() = false, want true")
	}
}
