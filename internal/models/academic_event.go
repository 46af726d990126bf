package models

import (
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
)

// EventType categorizes calendar events.
type EventType string

// Supported event types.
const (
	EventTypeHoliday  EventType = "HOLIDAY"
	EventTypeExam     EventType = "EXAM"
	EventTypeMeeting  EventType = "MEETING"
	EventTypeActivity EventType = "ACTIVITY"
	EventTypeDeadline EventType = "DEADLINE"
	EventTypeOther    EventType = "OTHER"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeHoliday, EventTypeExam, EventTypeMeeting, EventTypeActivity, EventTypeDeadline, EventTypeOther:
		return true
	}
	return false
}

// AcademicEvent is a dated occurrence inside an academic period.
type AcademicEvent struct {
	ID               string    `db:"id" json:"id"`
	AcademicPeriodID string    `db:"academic_period_id" json:"academic_period_id"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	Type             EventType `db:"type" json:"type"`
	StartDate        time.Time `db:"start_date" json:"start_date"`
	EndDate          time.Time `db:"end_date" json:"end_date"`
	IsAllDay         bool      `db:"is_all_day" json:"is_all_day"`
	Location         string    `db:"location" json:"location"`
	Notes            string    `db:"notes" json:"notes"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the event span.
func (e AcademicEvent) Interval() conflict.Interval {
	return conflict.Interval{ID: e.ID, Start: e.StartDate, End: e.EndDate}
}

// AcademicEventDetail adds the parent period labels.
type AcademicEventDetail struct {
	AcademicEvent
	PeriodName string `db:"period_name" json:"period_name"`
	PeriodCode string `db:"period_code" json:"period_code"`
}

// AcademicEventFilter describes list filters.
type AcademicEventFilter struct {
	AcademicPeriodID string
	Type             EventType
	StartFrom        *time.Time
	EndUntil         *time.Time
	IsAllDay         *bool
	IncludeInactive  bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// TypeCount is the number of active events of a type.
type TypeCount struct {
	Type  EventType `db:"type" json:"type"`
	Count int       `db:"count" json:"count"`
}

// PeriodEventCount is the number of active events in a period.
type PeriodEventCount struct {
	AcademicPeriodID string `db:"academic_period_id" json:"academic_period_id"`
	PeriodName       string `db:"period_name" json:"period_name"`
	Count            int    `db:"count" json:"count"`
}

// AcademicEventStats aggregates active events.
type AcademicEventStats struct {
	Total      int                `json:"total"`
	Today      int                `json:"today"`
	Upcoming   int                `json:"upcoming"`
	ByType     []TypeCount        `json:"by_type"`
	TopPeriods []PeriodEventCount `json:"top_periods"`
}
