package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, resource, action string, limit int) ([]models.AuditLog, error)
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	MaxRetries int
}

// AuditService writes audit entries off the request path.
type AuditService struct {
	repo    auditWriter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService builds the service and its queue. Call Start before use.
func NewAuditService(repo auditWriter, metrics *MetricsService, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// RecordRejection counts and audits a rejected time placement.
func (s *AuditService) RecordRejection(ctx context.Context, rejection *models.IntervalConflictError) {
	if s == nil || rejection == nil {
		return
	}
	s.metrics.IncConflictRejection(string(rejection.Scope))
	payload, err := json.Marshal(rejection)
	if err != nil {
		s.logger.Warn("encode conflict audit payload", zap.Error(err))
		return
	}
	s.enqueue(ctx, &models.AuditLog{
		Action:    models.AuditActionConflict,
		Resource:  string(rejection.Scope),
		NewValues: payload,
	}, rejection.ResourceKey)
}

// Record audits a successful write on resource.
func (s *AuditService) Record(ctx context.Context, action, resource, resourceID string, values interface{}) {
	if s == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		payload, err := json.Marshal(values)
		if err != nil {
			s.logger.Warn("encode audit payload", zap.String("resource", resource), zap.Error(err))
		} else {
			entry.NewValues = payload
		}
	}
	s.enqueue(ctx, entry, resourceID)
}

// List returns recent entries for a resource, optionally filtered by action.
func (s *AuditService) List(ctx context.Context, resource, action string, limit int) ([]models.AuditLog, error) {
	if resource == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource is required")
	}
	logs, err := s.repo.ListAuditLogs(ctx, resource, action, limit)
	if err != nil {
		return nil, internalError(err, "failed to list audit logs")
	}
	return logs, nil
}

func (s *AuditService) enqueue(ctx context.Context, entry *models.AuditLog, ref string) {
	if actor, ok := ActorFrom(ctx); ok {
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		entry.IPAddress = actor.IP
		entry.UserAgent = actor.UserAgent
	}

	err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: entry})
	if err == nil {
		return
	}
	if errors.Is(err, jobs.ErrQueueFull) {
		s.metrics.IncAuditDropped()
		s.logger.Warn("audit queue full, entry dropped", zap.String("action", entry.Action), zap.String("ref", ref))
		return
	}

	// Not running (startup, shutdown or tests): write inline.
	if writeErr := s.repo.CreateAuditLog(context.WithoutCancel(ctx), entry); writeErr != nil {
		s.metrics.IncAuditDropped()
		s.logger.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(writeErr))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.CreateAuditLog(ctx, entry)
}
