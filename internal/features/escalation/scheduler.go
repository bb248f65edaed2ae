package escalation

import (
	"context"
	"fmt"
	"sync"

	"go-approvals/internal/common/clock"
	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/config"
	"go-approvals/internal/features/audit"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs CheckTimeouts on the ESCALATION_SCHEDULE cron expression
type Scheduler struct {
	Monitor      EscalationMonitor
	Clock        clock.Clock
	AuditService audit.AuditService
	Logger       *zap.Logger
	schedule     string

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewScheduler(monitor EscalationMonitor, clk clock.Clock, auditService audit.AuditService, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Monitor:      monitor,
		Clock:        clk,
		AuditService: auditService,
		Logger:       logger.Named("escalation.scheduler"),
		schedule:     cfg.EscalationSchedule,
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return nil
	}

	cronLog := cronLogger{s.Logger.Sugar()}
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(s.schedule, func() { s.Run(context.Background()) }); err != nil {
		return fmt.Errorf("invalid escalation schedule %q: %w", s.schedule, err)
	}

	s.Logger.Info("Starting escalation scheduler", zap.String("schedule", s.schedule))
	c.Start()
	s.scheduler = c
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if c != nil {
		ctx := c.Stop()
		<-ctx.Done()
	}
}

// Run performs one scan at the current clock time
func (s *Scheduler) Run(ctx context.Context) []string {
	now := s.Clock.Now()
	escalated, err := s.Monitor.CheckTimeouts(ctx, now)
	if err != nil {
		s.Logger.Error("Escalation scan failed", zap.Error(err))
		return nil
	}

	if len(escalated) > 0 {
		if err := s.AuditService.LogChange(ctx, common_models.AuditActionCron, "escalation", "check_timeouts", map[string]common_models.Change{
			"escalated": {New: escalated},
		}); err != nil {
			s.Logger.Warn("Failed to write audit entry", zap.Error(err))
		}
	}
	s.Logger.Info("Escalation scan finished", zap.Time("at", now), zap.Int("escalated", len(escalated)))
	return escalated
}

// cronLogger routes robfig/cron diagnostics to zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
