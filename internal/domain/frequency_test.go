package domain

import (
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		raw  string
		want Frequency
	}{
		{raw: "daily", want: FrequencyDaily},
		{raw: " Weekly ", want: FrequencyWeekly},
		{raw: "MONTHLY", want: FrequencyMonthly},
		{raw: "quarterly", want: FrequencyQuarterly},
		{raw: "annually", want: FrequencyAnnually},
		{raw: "", want: FrequencyMonthly},
		{raw: "fortnightly", want: FrequencyMonthly},
	}

	for _, tt := range tests {
		if got := ParseFrequency(tt.raw); got != tt.want {
			t.Fatalf("ParseFrequency(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestAdvanceFrom_UsesCalendarArithmetic(t *testing.T) {
	base := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{freq: FrequencyDaily, want: time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)},
		{freq: FrequencyWeekly, want: time.Date(2026, time.February, 7, 10, 0, 0, 0, time.UTC)},
		// Jan 31 + 1 month normalizes per Go's AddDate rules.
		{freq: FrequencyMonthly, want: time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)},
		{freq: FrequencyQuarterly, want: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)},
		{freq: FrequencyAnnually, want: time.Date(2027, time.January, 31, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := tt.freq.AdvanceFrom(base); !got.Equal(tt.want) {
			t.Fatalf("%s.AdvanceFrom(%s) = %s, want %s", tt.freq, base, got, tt.want)
		}
	}
}

func TestAdvanceFrom_MidMonthIsStable(t *testing.T) {
	base := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)
	if got := FrequencyMonthly.AdvanceFrom(base); !got.Equal(want) {
		t.Fatalf("monthly advance from %s = %s, want %s", base, got, want)
	}
}
