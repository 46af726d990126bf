package models

import (
	"time"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
)

// Schedule places a subject taught by a teacher into a weekly slot of a course.
type Schedule struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime TimeOfDay `db:"start_time" json:"start_time"`
	EndTime   TimeOfDay `db:"end_time" json:"end_time"`
	Room      string    `db:"room" json:"room"`
	Notes     string    `db:"notes" json:"notes"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the slot as a comparable time range.
func (s Schedule) Interval() conflict.Interval {
	return conflict.ClockInterval(s.ID, s.StartTime.Minutes(), s.EndTime.Minutes())
}

// DayName returns the English weekday name.
func (s Schedule) DayName() string {
	return DayName(s.DayOfWeek)
}

// ScheduleDetail enriches Schedule with display names.
type ScheduleDetail struct {
	Schedule
	CourseName  string `db:"course_name" json:"course_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	CourseID        string
	SubjectID       string
	TeacherID       string
	DayOfWeek       *int
	IncludeInactive bool
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// DayCount is the number of active slots on a weekday.
type DayCount struct {
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	DayName   string `db:"-" json:"day_name"`
	Count     int    `db:"count" json:"count"`
}

// TeacherLoad is the number of active slots taught by a teacher.
type TeacherLoad struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Count       int    `db:"count" json:"count"`
}

// ScheduleStats aggregates the active timetable.
type ScheduleStats struct {
	TotalActive int           `json:"total_active"`
	ByDay       []DayCount    `json:"by_day"`
	TopTeachers []TeacherLoad `json:"top_teachers"`
}

// DayName maps 0..6 to Sunday..Saturday.
func DayName(day int) string {
	if day < 0 || day > 6 {
		return ""
	}
	return time.Weekday(day).String()
}
