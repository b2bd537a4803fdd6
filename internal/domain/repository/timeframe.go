package repository

import (
	"time"

	"LoadCast/pkg/util"
)

// Lookback bounds the history window a query may request.
const (
	MinLookbackDays     = 30
	DefaultLookbackDays = 730
	MaxLookbackDays     = 3650
)

// NormalizeLookback clamps a requested lookback in days to the supported window.
func NormalizeLookback(days int) int {
	switch {
	case days <= 0:
		return DefaultLookbackDays
	case days < MinLookbackDays:
		return MinLookbackDays
	case days > MaxLookbackDays:
		return MaxLookbackDays
	default:
		return days
	}
}

// Window returns the [from, to] range of the last days days ending at now, truncated to whole days.
func Window(now time.Time, days int) (time.Time, time.Time) {
	to := util.Day(now)
	return to.AddDate(0, 0, -days), to
}
