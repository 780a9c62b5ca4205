package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromDecimalRoundsHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want Money
	}{
		{"10.4", 10},
		{"10.5", 11},
		{"10.6", 11},
		{"0", 0},
	}
	for _, tc := range cases {
		if got := FromDecimal(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("FromDecimal(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestApplyPercent(t *testing.T) {
	if got := ApplyPercent(10_000, decimal.RequireFromString("7.5")); got != 750 {
		t.Fatalf("expected 750, got %d", got)
	}
	// 1005 * 7.5% = 75.375, rounds half-up to 75.
	if got := ApplyPercent(1_005, decimal.RequireFromString("7.5")); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-5, 100); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Clamp(150, 100); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if got := Clamp(50, 100); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}
