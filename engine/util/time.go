package util

import (
	"math"
	"time"
)

// HongKongTime is the fixed UTC+8 zone all schedule arithmetic uses.
var HongKongTime = time.FixedZone("HKT", 8*60*60)

// MinutesUntil returns the minutes from now until t, rounded to the
// nearest whole minute the way the bus arrival feeds expect.
func MinutesUntil(now, t time.Time) int {
	return int(math.Round(t.Sub(now).Seconds() / 60))
}

// CeilMinutesUntil rounds the remaining time up instead, matching the
// convention of the heavy-rail schedule feed.
func CeilMinutesUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Minutes()))
}

// IsNightServiceHours reports whether t falls in the 01:00 to 05:00
// window when overnight route numbers are boosted in search results.
func IsNightServiceHours(t time.Time) bool {
	h := t.In(HongKongTime).Hour()
	return h >= 1 && h < 5
}
