package domain

import (
	"strings"
	"time"
)

// Frequency is a billing cadence. The same date arithmetic is used for
// subscription billing and for membership expiry computed from metadata.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// ParseFrequency normalizes a stored frequency value. Empty or unrecognized
// values fall back to monthly, the billing default.
func ParseFrequency(raw string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(raw))) {
	case FrequencyDaily:
		return FrequencyDaily
	case FrequencyWeekly:
		return FrequencyWeekly
	case FrequencyMonthly:
		return FrequencyMonthly
	case FrequencyQuarterly:
		return FrequencyQuarterly
	case FrequencyAnnually:
		return FrequencyAnnually
	default:
		return FrequencyMonthly
	}
}

// AdvanceFrom returns the next billing or expiry date computed from t.
// Monthly, quarterly and annual cadences use calendar arithmetic, not fixed
// day counts.
func (f Frequency) AdvanceFrom(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencyAnnually:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}
