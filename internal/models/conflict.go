package models

import (
	"fmt"
	"strings"
)

// ConflictScope names the resource family in which a time placement collided.
type ConflictScope string

// Scopes checked before persisting time-placed records.
const (
	ScopeTeacherDay   ConflictScope = "TEACHER_DAY"
	ScopeCourseDay    ConflictScope = "COURSE_DAY"
	ScopePeriodEvents ConflictScope = "PERIOD_EVENTS"
	ScopePeriodWindow ConflictScope = "PERIOD_WINDOW"
	ScopeAllPeriods   ConflictScope = "ACADEMIC_PERIODS"
	ScopeEnrollment   ConflictScope = "ENROLLMENT"
)

// IntervalConflictError describes a rejected placement and the records it collided with.
type IntervalConflictError struct {
	Scope          ConflictScope `json:"scope"`
	ResourceKey    string        `json:"resource_key"`
	Message        string        `json:"message"`
	ConflictingIDs []string      `json:"conflicting_ids,omitempty"`
}

// Error names where the placement collided. The human message travels on the
// API error that wraps it.
func (e *IntervalConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	out := fmt.Sprintf("%s conflict on %s", e.Scope, e.ResourceKey)
	if len(e.ConflictingIDs) > 0 {
		out += " with " + strings.Join(e.ConflictingIDs, ",")
	}
	return out
}

// Details exposes the payload for API responses.
func (e *IntervalConflictError) Details() map[string]interface{} {
	if e == nil {
		return nil
	}
	return map[string]interface{}{
		"scope":           e.Scope,
		"resource_key":    e.ResourceKey,
		"conflicting_ids": e.ConflictingIDs,
	}
}
