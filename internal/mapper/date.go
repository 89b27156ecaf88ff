package mapper

import (
	"math"
	"time"
)

// CreatedLayout is the target's created-at format.
const CreatedLayout = "2006-01-02 15:04:05"

// referenceEpochOffset is 2001-01-01T00:00:00Z in Unix seconds.
const referenceEpochOffset = 978307200

// msTolerance absorbs float64 error in the fraction of a timestamp that is
// an exact millisecond count, such as 1.001.
const msTolerance = 1e-3

// UnixMilli converts seconds since 2001-01-01T00:00:00Z into Unix
// milliseconds. Seconds are floored, so negative inputs stay exact, and the
// fractional part is floored to whole milliseconds after allowing for one
// microsecond of representation error.
func UnixMilli(t float64) int64 {
	s := math.Floor(t)
	ms := int64(math.Floor((t-s)*1000 + msTolerance))
	return int64(s)*1000 + referenceEpochOffset*1000 + ms
}

// CreatedAt formats a source timestamp in loc using CreatedLayout.
func CreatedAt(t float64, loc *time.Location) string {
	return time.UnixMilli(UnixMilli(t)).In(loc).Format(CreatedLayout)
}
