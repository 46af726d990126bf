package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleIntervalUsesClockMinutes(t *testing.T) {
	s := Schedule{ID: "s1", StartTime: TimeOfDay(9 * 60), EndTime: TimeOfDay(10 * 60)}
	iv := s.Interval()
	assert.Equal(t, "s1", iv.ID)
	assert.Equal(t, time.Hour, iv.End.Sub(iv.Start))
}

func TestDayName(t *testing.T) {
	assert.Equal(t, "Sunday", DayName(0))
	assert.Equal(t, "Monday", DayName(1))
	assert.Equal(t, "Saturday", DayName(6))
	assert.Equal(t, "", DayName(7))
}

func TestEnrollmentWindow(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	_, ok := Enrollment{StartDate: &start}.Window()
	assert.False(t, ok)

	end := start.AddDate(0, 1, 0)
	iv, ok := Enrollment{ID: "e1", StartDate: &start, EndDate: &end}.Window()
	assert.True(t, ok)
	assert.Equal(t, "e1", iv.ID)
}

func TestCourseFull(t *testing.T) {
	capacity := 2
	assert.False(t, Course{}.Full())
	assert.False(t, Course{Capacity: &capacity, CurrentEnrollment: 1}.Full())
	assert.True(t, Course{Capacity: &capacity, CurrentEnrollment: 2}.Full())
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, EventTypeExam.Valid())
	assert.False(t, EventType("PARTY").Valid())
	assert.True(t, EnrollmentStatusSuspended.Valid())
	assert.False(t, EnrollmentStatus("GONE").Valid())
}

func TestUserRoleValid(t *testing.T) {
	assert.True(t, RoleTeacher.Valid())
	assert.False(t, UserRole("PARENT").Valid())
}

func TestNewPaginationTotalPages(t *testing.T) {
	assert.Equal(t, 3, NewPagination(1, 20, 41).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 20, 20).TotalPages)
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, tok.Usable(now))
	assert.False(t, tok.Usable(now.Add(2*time.Hour)))
	tok.Revoked = true
	assert.False(t, tok.Usable(now))
}

func TestAuditLogMarshalsSnapshotsAsObjects(t *testing.T) {
	out, err := json.Marshal(AuditLog{ID: "a1", Action: AuditActionCreate, NewValues: []byte(`{"room":"B2"}`), OldValues: []byte("not json")})
	assert.NoError(t, err)
	assert.Contains(t, string(out), `"new_values":{"room":"B2"}`)
	assert.NotContains(t, string(out), "old_values")
	assert.Contains(t, string(out), `"action":"CREATE"`)
}

func TestIntervalConflictErrorNamesScopeAndKey(t *testing.T) {
	rejection := &IntervalConflictError{
		Scope:          ScopePeriodEvents,
		ResourceKey:    "period:p1",
		Message:        "event overlaps an existing event",
		ConflictingIDs: []string{"e1", "e2"},
	}
	assert.Equal(t, "PERIOD_EVENTS conflict on period:p1 with e1,e2", rejection.Error())
	assert.Equal(t, "PERIOD_WINDOW conflict on period:p1", (&IntervalConflictError{Scope: ScopePeriodWindow, ResourceKey: "period:p1"}).Error())
}
