package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
	"github.com/noah-isme/sma-scheduling-api/pkg/middleware/requestid"
)

const defaultSweepSpec = "@daily"

type statusSweeper interface {
	SweepStatuses(ctx context.Context) ([]models.PeriodTransition, error)
}

// PeriodSweeper periodically advances academic period statuses.
type PeriodSweeper struct {
	sweeper statusSweeper
	spec    string
	loc     *time.Location
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPeriodSweeper validates the cron spec and builds a sweeper evaluated in loc.
func NewPeriodSweeper(sweeper statusSweeper, spec string, loc *time.Location, logger *zap.Logger) (*PeriodSweeper, error) {
	if spec == "" {
		spec = defaultSweepSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse period sweep schedule %q: %w", spec, err)
	}
	return &PeriodSweeper{
		sweeper: sweeper,
		spec:    spec,
		loc:     loc,
		timeout: time.Minute,
		logger:  logger,
	}, nil
}

// Start runs one sweep immediately and then registers the recurring job.
func (p *PeriodSweeper) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(p.loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(p.spec, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register period sweep: %w", err)
	}
	p.cron = c
	p.RunOnce(ctx)
	c.Start()
	p.logger.Info("period sweeper started", zap.String("schedule", p.spec), zap.String("tz", p.loc.String()))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (p *PeriodSweeper) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	p.logger.Info("period sweeper stopped")
}

// RunOnce performs a single sweep, logging rather than returning failures.
func (p *PeriodSweeper) RunOnce(parent context.Context) int {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.timeout)
	defer cancel()
	ctx = requestid.WithValue(ctx, "sweep-"+uuid.NewString())

	transitions, err := p.sweeper.SweepStatuses(ctx)
	if err != nil {
		logger.For(ctx, p.logger).Warn("period status sweep failed", zap.Error(err))
		return 0
	}
	return len(transitions)
}
