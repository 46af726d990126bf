package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

type refStore struct {
	mu       sync.Mutex
	courses  map[string]*models.Course
	subjects map[string]*models.Subject
	teachers map[string]*models.Teacher
	students map[string]*models.Student
}

func newRefStore() *refStore {
	capacity := 2
	return &refStore{
		courses: map[string]*models.Course{
			"course-a":      {ID: "course-a", Name: "X-A", IsActive: true},
			"course-b":      {ID: "course-b", Name: "X-B", IsActive: true},
			"course-small":  {ID: "course-small", Name: "Lab", Capacity: &capacity, CurrentEnrollment: 2, IsActive: true},
			"course-one":    {ID: "course-one", Name: "Seminar", Capacity: intPtr(1), IsActive: true},
			"course-closed": {ID: "course-closed", Name: "Old", IsActive: false},
		},
		subjects: map[string]*models.Subject{
			"math": {ID: "math", Name: "Mathematics", IsActive: true},
		},
		teachers: map[string]*models.Teacher{
			"t1":     {ID: "t1", FullName: "Ana", IsActive: true},
			"t2":     {ID: "t2", FullName: "Budi", IsActive: true},
			"t-gone": {ID: "t-gone", FullName: "Citra", IsActive: false},
		},
		students: map[string]*models.Student{
			"s1": {ID: "s1", FullName: "Dewi", IsActive: true},
			"s2": {ID: "s2", FullName: "Eka", IsActive: true},
		},
	}
}

func (r *refStore) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

// takeSeat bumps the course counter unless the course is full, like the storage update does.
func (r *refStore) takeSeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	if c.Full() {
		return repository.ErrCapacity
	}
	c.CurrentEnrollment++
	return nil
}

func (r *refStore) releaseSeat(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.courses[id]; ok && c.CurrentEnrollment > 0 {
		c.CurrentEnrollment--
	}
}

func (r *refStore) seats(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.courses[id].CurrentEnrollment
}

func (r *refStore) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := r.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *refStore) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := r.teachers[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *refStore) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := r.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type auditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *log)
	return nil
}

func (a *auditStore) ListAuditLogs(ctx context.Context, resource, action string, limit int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for _, e := range a.entries {
		if e.Resource == resource && (action == "" || e.Action == action) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *auditStore) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// requireAppError asserts err is an *appErrors.Error with the given code and returns it.
func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

// requireConflict asserts err is a placement rejection and returns its payload.
func requireConflict(t *testing.T, err error, code string) *models.IntervalConflictError {
	t.Helper()
	requireAppError(t, err, code)
	var rejection *models.IntervalConflictError
	require.True(t, errors.As(err, &rejection))
	return rejection
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
