package models

import (
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusCancelled, EnrollmentStatusSuspended:
		return true
	}
	return false
}

// Enrollment registers a student in a course for an academic period.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	AcademicPeriodID string           `db:"academic_period_id" json:"academic_period_id"`
	EnrollmentDate   time.Time        `db:"enrollment_date" json:"enrollment_date"`
	StartDate        *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EndDate          *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Notes            string           `db:"notes" json:"notes"`
	IsActive         bool             `db:"is_active" json:"is_active"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Window returns the attendance window when both bounds are set.
func (e Enrollment) Window() (conflict.Interval, bool) {
	if e.StartDate == nil || e.EndDate == nil {
		return conflict.Interval{}, false
	}
	return conflict.Interval{ID: e.ID, Start: *e.StartDate, End: *e.EndDate}, true
}

// EnrollmentDetail enriches Enrollment with display names.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
	PeriodName  string `db:"period_name" json:"period_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID        string
	CourseID         string
	AcademicPeriodID string
	Status           EnrollmentStatus
	IncludeInactive  bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// EnrollmentStats aggregates enrollments by status.
type EnrollmentStats struct {
	Total    int           `json:"total"`
	Active   int           `json:"active"`
	ByStatus []StatusCount `json:"by_status"`
}
