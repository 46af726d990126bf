package service

import (
	"context"
	"database/sql"
	"fmt"
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

type eventStore struct {
	mu        sync.Mutex
	items     map[string]*models.AcademicEvent
	seq       int
	lastFrom  time.Time
	lastTo    time.Time
	listReply []models.AcademicEventDetail
}

func newEventStore(seed ...models.AcademicEvent) *eventStore {
	s := &eventStore{items: map[string]*models.AcademicEvent{}}
	for i := range seed {
		item := seed[i]
		item.IsActive = true
		s.items[item.ID] = &item
	}
	return s
}

func (s *eventStore) List(ctx context.Context, filter models.AcademicEventFilter) ([]models.AcademicEventDetail, int, error) {
	return s.listReply, len(s.listReply), nil
}

func (s *eventStore) FindByID(ctx context.Context, id string) (*models.AcademicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *eventStore) ListActiveByPeriod(ctx context.Context, periodID string) ([]models.AcademicEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AcademicEvent
	for _, item := range s.items {
		if item.IsActive && item.AcademicPeriodID == periodID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *eventStore) ListIntersecting(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error) {
	s.lastFrom, s.lastTo = from, to
	return s.listReply, nil
}

func (s *eventStore) ListStartingBetween(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error) {
	s.lastFrom, s.lastTo = from, to
	return s.listReply, nil
}

func (s *eventStore) ListByType(ctx context.Context, eventType models.EventType) ([]models.AcademicEventDetail, error) {
	return s.listReply, nil
}

func (s *eventStore) Create(ctx context.Context, ev *models.AcademicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev.ID = fmt.Sprintf("ev-%d", s.seq)
	ev.IsActive = true
	cp := *ev
	s.items[cp.ID] = &cp
	return nil
}

func (s *eventStore) Update(ctx context.Context, ev *models.AcademicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.items[cp.ID] = &cp
	return nil
}

func (s *eventStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id].IsActive = false
	return nil
}

func (s *eventStore) Stats(ctx context.Context, now time.Time) (*models.AcademicEventStats, error) {
	return &models.AcademicEventStats{Total: len(s.items)}, nil
}

func instant(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func event(id, periodID, start, end string) models.AcademicEvent {
	return models.AcademicEvent{ID: id, AcademicPeriodID: periodID, Title: id, Type: models.EventTypeExam, StartDate: instant(start), EndDate: instant(end)}
}

func newTestEventService(events *eventStore, periods *periodStore) *AcademicEventService {
	auditSvc := NewAuditService(&auditStore{}, nil, AuditConfig{}, zap.NewNop())
	guard := conflict.NewGuard(lock.NewMemory(time.Second), zap.NewNop())
	svc := NewAcademicEventService(events, periods, guard, auditSvc, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return instant("2025-03-10T09:00:00Z") }
	return svc
}

func eventReq(periodID, start, end string) CreateAcademicEventRequest {
	return CreateAcademicEventRequest{AcademicPeriodID: periodID, Title: "Midterm", Type: "exam", StartDate: instant(start), EndDate: instant(end)}
}

func TestEventDeactivateTwiceIsNotFound(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	events := newEventStore(event("e1", "p1", "2025-03-10T08:00:00Z", "2025-03-10T10:00:00Z"))
	svc := newTestEventService(events, periods)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, "e1"))
	err := svc.Deactivate(ctx, "e1")
	appErr := requireAppError(t, err, "NOT_FOUND")
	assert.Equal(t, "academic event not found", appErr.Message)
	assert.False(t, events.items["e1"].IsActive)
}

func TestEventCreateRejectsOverlapInSamePeriod(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	events := newEventStore(event("e1", "p1", "2025-03-10T08:00:00Z", "2025-03-10T10:00:00Z"))
	svc := newTestEventService(events, periods)

	_, err := svc.Create(context.Background(), eventReq("p1", "2025-03-10T09:00:00Z", "2025-03-10T11:00:00Z"))
	rejection := requireConflict(t, err, "SCHEDULE_CONFLICT")
	assert.Equal(t, models.ScopePeriodEvents, rejection.Scope)
	assert.Equal(t, "period:p1", rejection.ResourceKey)
	assert.Contains(t, err.Error(), "event overlaps an existing event")
}

func TestEventCreateAllowsAdjacentEvent(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	events := newEventStore(event("e1", "p1", "2025-03-10T08:00:00Z", "2025-03-10T10:00:00Z"))
	svc := newTestEventService(events, periods)

	created, err := svc.Create(context.Background(), eventReq("p1", "2025-03-10T10:00:00Z", "2025-03-10T11:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeExam, created.Type)
}

func TestEventCreateRejectsOutsidePeriodDistinctly(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestEventService(newEventStore(), periods)

	_, err := svc.Create(context.Background(), eventReq("p1", "2025-06-29T00:00:00Z", "2025-07-02T00:00:00Z"))
	rejection := requireConflict(t, err, "OUTSIDE_PERIOD")
	assert.Equal(t, models.ScopePeriodWindow, rejection.Scope)
	assert.Equal(t, "event must fall within the academic period: PERIOD_WINDOW conflict on period:p1 with p1", err.Error())
}

func TestEventCreateAcceptsExactPeriodBounds(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestEventService(newEventStore(), periods)

	_, err := svc.Create(context.Background(), eventReq("p1", "2025-01-01T00:00:00Z", "2025-06-30T00:00:00Z"))
	require.NoError(t, err)
}

func TestEventCreateRequiresActivePeriod(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	periods.items["p1"].IsActive = false
	svc := newTestEventService(newEventStore(), periods)

	_, err := svc.Create(context.Background(), eventReq("p1", "2025-03-10T08:00:00Z", "2025-03-10T09:00:00Z"))
	requireAppError(t, err, "INVALID_REFERENCE")

	_, err = svc.Create(context.Background(), eventReq("nope", "2025-03-10T08:00:00Z", "2025-03-10T09:00:00Z"))
	requireAppError(t, err, "INVALID_REFERENCE")
}

func TestEventCreateValidatesTypeAndRange(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	svc := newTestEventService(newEventStore(), periods)
	ctx := context.Background()

	req := eventReq("p1", "2025-03-10T08:00:00Z", "2025-03-10T09:00:00Z")
	req.Type = "PARTY"
	_, err := svc.Create(ctx, req)
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.Create(ctx, eventReq("p1", "2025-03-10T09:00:00Z", "2025-03-10T09:00:00Z"))
	requireAppError(t, err, "INVALID_INTERVAL")
}

func TestEventUpdateChecksNewParentPeriod(t *testing.T) {
	periods := newPeriodStore(
		period("p1", "S1", "2025-01-01", "2025-06-30"),
		period("p2", "S2", "2025-07-01", "2025-12-31"),
	)
	events := newEventStore(event("e1", "p1", "2025-03-10T08:00:00Z", "2025-03-10T10:00:00Z"))
	svc := newTestEventService(events, periods)

	_, err := svc.Update(context.Background(), "e1", UpdateAcademicEventRequest{AcademicPeriodID: strPtr("p2")})
	requireConflict(t, err, "OUTSIDE_PERIOD")

	start, end := instant("2025-08-01T08:00:00Z"), instant("2025-08-01T10:00:00Z")
	moved, err := svc.Update(context.Background(), "e1", UpdateAcademicEventRequest{AcademicPeriodID: strPtr("p2"), StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "p2", moved.AcademicPeriodID)
}

func TestEventUpdateExcludesItself(t *testing.T) {
	periods := newPeriodStore(period("p1", "S1", "2025-01-01", "2025-06-30"))
	events := newEventStore(event("e1", "p1", "2025-03-10T08:00:00Z", "2025-03-10T10:00:00Z"))
	svc := newTestEventService(events, periods)

	end := instant("2025-03-10T11:00:00Z")
	_, err := svc.Update(context.Background(), "e1", UpdateAcademicEventRequest{EndDate: &end})
	require.NoError(t, err)
}

func TestEventUpcomingCapsResults(t *testing.T) {
	events := newEventStore()
	for i := 0; i < 25; i++ {
		events.listReply = append(events.listReply, models.AcademicEventDetail{AcademicEvent: models.AcademicEvent{ID: fmt.Sprintf("e%d", i)}})
	}
	svc := newTestEventService(events, newPeriodStore())

	upcoming, err := svc.Upcoming(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Len(t, upcoming, 20)
	assert.Equal(t, instant("2025-03-10T00:00:00Z"), events.lastFrom)
	assert.Equal(t, instant("2025-04-09T00:00:00Z"), events.lastTo)
}

func TestEventCalendarAndByTypeValidation(t *testing.T) {
	svc := newTestEventService(newEventStore(), newPeriodStore())
	ctx := context.Background()

	_, err := svc.Calendar(ctx, CalendarQuery{From: instant("2025-03-10T00:00:00Z"), To: instant("2025-03-01T00:00:00Z")})
	requireAppError(t, err, "INVALID_INTERVAL")

	_, err = svc.Calendar(ctx, CalendarQuery{})
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.ByType(ctx, "bogus")
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.ByType(ctx, "holiday")
	require.NoError(t, err)
}
