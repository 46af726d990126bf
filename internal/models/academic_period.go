package models

import (
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
)

// PeriodStatus is the lifecycle state of an academic period.
type PeriodStatus string

// Academic period statuses.
const (
	PeriodStatusPlanning  PeriodStatus = "PLANNING"
	PeriodStatusActive    PeriodStatus = "ACTIVE"
	PeriodStatusCompleted PeriodStatus = "COMPLETED"
	PeriodStatusCancelled PeriodStatus = "CANCELLED"
)

// AcademicPeriod is a term or semester. Active periods never overlap each other.
type AcademicPeriod struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Code        string       `db:"code" json:"code"`
	Description string       `db:"description" json:"description"`
	StartDate   time.Time    `db:"start_date" json:"start_date"`
	EndDate     time.Time    `db:"end_date" json:"end_date"`
	Status      PeriodStatus `db:"status" json:"status"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Interval returns the period span.
func (p AcademicPeriod) Interval() conflict.Interval {
	return conflict.Interval{ID: p.ID, Start: p.StartDate, End: p.EndDate}
}

// AcademicPeriodSummary adds related counts used by list views.
type AcademicPeriodSummary struct {
	AcademicPeriod
	EnrollmentCount int `db:"enrollment_count" json:"enrollment_count"`
	EventCount      int `db:"event_count" json:"event_count"`
}

// AcademicPeriodFilter describes list filters.
type AcademicPeriodFilter struct {
	Status          PeriodStatus
	StartFrom       *time.Time
	EndUntil        *time.Time
	IncludeInactive bool
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// StatusCount is a generic status histogram bucket.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// AcademicPeriodStats aggregates periods by status.
type AcademicPeriodStats struct {
	Total            int             `json:"total"`
	ByStatus         []StatusCount   `json:"by_status"`
	Current          *AcademicPeriod `json:"current,omitempty"`
	TotalEnrollments int             `json:"total_enrollments"`
}

// PeriodTransition records a status change applied by the sweeper.
type PeriodTransition struct {
	ID   string       `db:"id" json:"id"`
	From PeriodStatus `db:"from_status" json:"from"`
	To   PeriodStatus `db:"to_status" json:"to"`
}
