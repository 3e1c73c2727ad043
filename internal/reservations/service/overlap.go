package service

import "time"

// Overlaps reports whether the half-open intervals [start1, end1) and
// [start2, end2) intersect. Touching endpoints do not overlap: a slot ending
// at 10:00 and one starting at 10:00 coexist.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}
