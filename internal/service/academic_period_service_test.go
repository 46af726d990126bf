package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/pkg/lock"
)

type periodStore struct {
	mu          sync.Mutex
	items       map[string]*models.AcademicPeriod
	enrollments map[string]int
	transitions []models.PeriodTransition
	sweptOn     time.Time
	seq         int
}

func newPeriodStore(seed ...models.AcademicPeriod) *periodStore {
	s := &periodStore{items: map[string]*models.AcademicPeriod{}, enrollments: map[string]int{}}
	for i := range seed {
		item := seed[i]
		item.IsActive = true
		if item.Status == "" {
			item.Status = models.PeriodStatusPlanning
		}
		s.items[item.ID] = &item
	}
	return s
}

func (s *periodStore) List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriodSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AcademicPeriodSummary
	for _, item := range s.items {
		out = append(out, models.AcademicPeriodSummary{AcademicPeriod: *item, EnrollmentCount: s.enrollments[item.ID]})
	}
	return out, len(out), nil
}

func (s *periodStore) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *periodStore) ListActive(ctx context.Context) ([]models.AcademicPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AcademicPeriod
	for _, item := range s.items {
		if item.IsActive {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *periodStore) ListByStatus(ctx context.Context, status models.PeriodStatus) ([]models.AcademicPeriod, error) {
	active, _ := s.ListActive(ctx)
	var out []models.AcademicPeriod
	for _, item := range active {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *periodStore) FindCurrent(ctx context.Context, day time.Time) (*models.AcademicPeriod, error) {
	active, _ := s.ListActive(ctx)
	for _, item := range active {
		if !item.StartDate.After(day) && !item.EndDate.Before(day) {
			cp := item
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *periodStore) ListUpcoming(ctx context.Context, day time.Time, limit int) ([]models.AcademicPeriod, error) {
	active, _ := s.ListActive(ctx)
	var out []models.AcademicPeriod
	for _, item := range active {
		if item.StartDate.After(day) && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *periodStore) ExistsCode(ctx context.Context, code, excludeID string) (bool, error) {
	active, _ := s.ListActive(ctx)
	for _, item := range active {
		if strings.EqualFold(item.Code, code) && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *periodStore) CountActiveEnrollments(ctx context.Context, periodID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[periodID], nil
}

func (s *periodStore) Create(ctx context.Context, period *models.AcademicPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	period.ID = fmt.Sprintf("p-%d", s.seq)
	period.IsActive = true
	if period.Status == "" {
		period.Status = models.PeriodStatusPlanning
	}
	cp := *period
	s.items[cp.ID] = &cp
	return nil
}

func (s *periodStore) Update(ctx context.Context, period *models.AcademicPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *period
	s.items[cp.ID] = &cp
	return nil
}

func (s *periodStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id].IsActive = false
	return nil
}

func (s *periodStore) Stats(ctx context.Context) (*models.AcademicPeriodStats, error) {
	active, _ := s.ListActive(ctx)
	return &models.AcademicPeriodStats{Total: len(active)}, nil
}

func (s *periodStore) ApplyStatusTransitions(ctx context.Context, today time.Time) ([]models.PeriodTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweptOn = today
	return s.transitions, nil
}

func day(raw string) time.Time {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		panic(err)
	}
	return t
}

func period(id, code, start, end string) models.AcademicPeriod {
	return models.AcademicPeriod{ID: id, Name: code, Code: code, StartDate: day(start), EndDate: day(end)}
}

func newTestPeriodService(store *periodStore, events periodEventLister, audit *auditStore) *AcademicPeriodService {
	auditSvc := NewAuditService(audit, nil, AuditConfig{}, zap.NewNop())
	guard := conflict.NewGuard(lock.NewMemory(time.Second), zap.NewNop())
	svc := NewAcademicPeriodService(store, events, guard, auditSvc, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return day("2025-03-10").Add(9 * time.Hour) }
	return svc
}

func TestPeriodCreateRejectsOverlap(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})

	_, err := svc.Create(context.Background(), CreateAcademicPeriodRequest{
		Name: "Overlap", Code: "S2", StartDate: day("2025-06-01"), EndDate: day("2025-12-31"),
	})
	rejection := requireConflict(t, err, "SCHEDULE_CONFLICT")
	assert.Equal(t, models.ScopeAllPeriods, rejection.Scope)
	assert.Equal(t, "periods:all", rejection.ResourceKey)
	assert.Contains(t, err.Error(), "academic periods overlap")
}

func TestPeriodCreateAllowsTouchingSpans(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})

	created, err := svc.Create(context.Background(), CreateAcademicPeriodRequest{
		Name: "Second", Code: "s2", StartDate: day("2025-06-30"), EndDate: day("2025-12-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, "S2", created.Code)
	assert.Equal(t, models.PeriodStatusPlanning, created.Status)
}

func TestPeriodCreateRejectsDuplicateCodeAndBadRange(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateAcademicPeriodRequest{Name: "Dup", Code: "s1", StartDate: day("2026-01-01"), EndDate: day("2026-06-30")})
	appErr := requireAppError(t, err, "CONFLICT")
	assert.Equal(t, "academic period code already exists", appErr.Message)

	_, err = svc.Create(ctx, CreateAcademicPeriodRequest{Name: "Bad", Code: "B", StartDate: day("2026-06-30"), EndDate: day("2026-01-01")})
	requireAppError(t, err, "INVALID_INTERVAL")

	_, err = svc.Create(ctx, CreateAcademicPeriodRequest{Name: "Bad", Code: "B", StartDate: day("2026-01-01"), EndDate: day("2026-01-01")})
	requireAppError(t, err, "INVALID_INTERVAL")
}

func TestPeriodCreateKeepsSubmittedInstants(t *testing.T) {
	store := newPeriodStore()
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateAcademicPeriodRequest{
		Name: "Semester", Code: "S1", StartDate: instant("2025-01-01T00:00:00+07:00"), EndDate: instant("2025-06-30T23:59:59Z"),
	})
	require.NoError(t, err)
	assert.True(t, created.StartDate.Equal(instant("2024-12-31T17:00:00Z")))
	assert.Equal(t, time.UTC, created.EndDate.Location())
	assert.True(t, created.EndDate.Equal(instant("2025-06-30T23:59:59Z")))

	events := newTestEventService(newEventStore(), store)
	_, err = events.Create(ctx, eventReq(created.ID, "2025-06-30T09:00:00Z", "2025-06-30T12:00:00Z"))
	require.NoError(t, err)
}

func TestPeriodCreateAllowsSameDaySpan(t *testing.T) {
	svc := newTestPeriodService(newPeriodStore(), newEventStore(), &auditStore{})

	created, err := svc.Create(context.Background(), CreateAcademicPeriodRequest{
		Name: "Orientation", Code: "ORI", StartDate: instant("2025-07-14T08:00:00Z"), EndDate: instant("2025-07-14T17:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour, created.EndDate.Sub(created.StartDate))

	end := instant("2025-07-14T08:00:00Z")
	_, err = svc.Update(context.Background(), created.ID, UpdateAcademicPeriodRequest{EndDate: &end})
	requireAppError(t, err, "INVALID_INTERVAL")
}

func TestPeriodUpdateExcludesItselfAndKeepsOwnCode(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})

	end := day("2025-07-15")
	updated, err := svc.Update(context.Background(), "p1", UpdateAcademicPeriodRequest{EndDate: &end, Code: strPtr("s1")})
	require.NoError(t, err)
	assert.Equal(t, end, updated.EndDate)
}

func TestPeriodUpdateRejectsStrandingEvents(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	events := newEventStore(event("e1", "p1", "2025-06-10T08:00:00Z", "2025-06-10T10:00:00Z"))
	svc := newTestPeriodService(store, events, &auditStore{})

	end := day("2025-05-31")
	_, err := svc.Update(context.Background(), "p1", UpdateAcademicPeriodRequest{EndDate: &end})
	rejection := requireConflict(t, err, "OUTSIDE_PERIOD")
	assert.Equal(t, []string{"e1"}, rejection.ConflictingIDs)
}

func TestPeriodDeactivateBlockedByActiveEnrollments(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	store.enrollments["p1"] = 3
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})

	err := svc.Deactivate(context.Background(), "p1")
	appErr := requireAppError(t, err, "CONFLICT")
	assert.Equal(t, "academic period has active enrollments", appErr.Message)

	store.enrollments["p1"] = 0
	require.NoError(t, svc.Deactivate(context.Background(), "p1"))
	assert.False(t, store.items["p1"].IsActive)
}

func TestPeriodDeactivateTwiceIsNotFound(t *testing.T) {
	store := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	audit := &auditStore{}
	svc := newTestPeriodService(store, newEventStore(), audit)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, "p1"))
	audited := len(audit.entries)

	err := svc.Deactivate(ctx, "p1")
	appErr := requireAppError(t, err, "NOT_FOUND")
	assert.Equal(t, "academic period not found", appErr.Message)
	assert.Len(t, audit.entries, audited)
}

func TestPeriodCurrentAndUpcoming(t *testing.T) {
	store := newPeriodStore(
		period("p1", "S1", "2025-01-01", "2025-06-30"),
		period("p2", "S2", "2025-07-01", "2025-12-31"),
	)
	svc := newTestPeriodService(store, newEventStore(), &auditStore{})
	ctx := context.Background()

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", current.ID)

	upcoming, err := svc.Upcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "p2", upcoming[0].ID)

	svc.now = func() time.Time { return day("2030-01-01") }
	_, err = svc.Current(ctx)
	requireAppError(t, err, "NOT_FOUND")
}

func TestPeriodSweepRecordsTransitions(t *testing.T) {
	store := newPeriodStore()
	store.transitions = []models.PeriodTransition{{ID: "p1", From: models.PeriodStatusPlanning, To: models.PeriodStatusActive}}
	audit := &auditStore{}
	svc := newTestPeriodService(store, newEventStore(), audit)
	svc.WithMetrics(NewMetricsService())

	transitions, err := svc.SweepStatuses(context.Background())
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
	assert.Equal(t, day("2025-03-10"), store.sweptOn)
	assert.Equal(t, []string{models.AuditActionStatusSweep}, audit.actions())
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().PeriodTransitions)
}

func TestPeriodTodayHonoursLocation(t *testing.T) {
	svc := newTestPeriodService(newPeriodStore(), newEventStore(), &auditStore{})
	jakarta := time.FixedZone("WIB", 7*3600)
	svc.WithLocation(jakarta)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC) }

	assert.Equal(t, day("2025-03-11"), svc.today())
}
