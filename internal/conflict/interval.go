// Package conflict decides whether a time range collides with other ranges that share
// a resource, and serializes the check-then-write sequence around that decision.
package conflict

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not start strictly before it ends.
var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is a half-open time range [Start, End) owned by a persisted record.
type Interval struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the Start < End invariant.
func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether a and b share at least one instant. Touching ranges do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether child lies within parent, bounds included.
func Contains(parent, child Interval) bool {
	return !child.Start.Before(parent.Start) && !child.End.After(parent.End)
}

// HasConflict reports whether candidate overlaps any interval in existing whose ID differs from excludeID.
func HasConflict(candidate Interval, existing []Interval, excludeID string) bool {
	_, ok := FirstConflict(candidate, existing, excludeID)
	return ok
}

// FirstConflict returns the first interval in existing that overlaps candidate.
func FirstConflict(candidate Interval, existing []Interval, excludeID string) (Interval, bool) {
	for _, item := range existing {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if Overlaps(candidate, item) {
			return item, true
		}
	}
	return Interval{}, false
}

// FindConflicts returns every interval in existing that overlaps candidate, preserving order.
func FindConflicts(candidate Interval, existing []Interval, excludeID string) []Interval {
	var out []Interval
	for _, item := range existing {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if Overlaps(candidate, item) {
			out = append(out, item)
		}
	}
	return out
}

// clockAnchor is the reference date used to place time-of-day ranges on a timeline.
var clockAnchor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ClockInterval places a weekly slot expressed as minutes since midnight on a fixed
// reference day so it can be compared with other slots of the same weekday.
func ClockInterval(id string, startMinute, endMinute int) Interval {
	return Interval{
		ID:    id,
		Start: clockAnchor.Add(time.Duration(startMinute) * time.Minute),
		End:   clockAnchor.Add(time.Duration(endMinute) * time.Minute),
	}
}
