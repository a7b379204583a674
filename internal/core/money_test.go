package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0", "0", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.565")
	if c := Cents(d); c != 123457 {
		t.Fatalf("expected 123457 cents, got %d", c)
	}
	if got := FromCents(123457); !got.Equal(decimal.RequireFromString("1234.57")) {
		t.Fatalf("expected 1234.57, got %s", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("1234.5"), "USD"); got != "$1,234.50" {
		t.Fatalf("expected $1,234.50, got %q", got)
	}
}

func TestNewLineItemSpend(t *testing.T) {
	row := NewLineItemSpend(1, "Travel", decimal.NewFromInt(500), decimal.NewFromInt(200))
	if !row.PercentSpent.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40.0%%, got %s", row.PercentSpent)
	}
	if !row.Remaining.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected remaining 300, got %s", row.Remaining)
	}

	zero := NewLineItemSpend(2, "Unfunded", decimal.Zero, decimal.NewFromInt(25))
	if !zero.PercentSpent.IsZero() {
		t.Fatalf("expected 0.0%% for zero allocation, got %s", zero.PercentSpent)
	}
	if !zero.Remaining.Equal(decimal.NewFromInt(-25)) {
		t.Fatalf("expected remaining -25, got %s", zero.Remaining)
	}

	third := NewLineItemSpend(3, "Supplies", decimal.NewFromInt(300), decimal.NewFromInt(100))
	if !third.PercentSpent.Equal(decimal.RequireFromString("33.3")) {
		t.Fatalf("expected 33.3%%, got %s", third.PercentSpent)
	}
}
