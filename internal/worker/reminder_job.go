package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/config"
	"github.com/spec-kit/request-desk/internal/service"
)

// ReminderScanner is the part of the reminder service the job drives.
type ReminderScanner interface {
	RunReminderScan(ctx context.Context, now time.Time, cooldown time.Duration, window *service.ActiveWindow) (int, error)
}

// ReminderJob runs the reminder scan on a fixed interval.
type ReminderJob struct {
	scanner  ReminderScanner
	interval time.Duration
	cooldown time.Duration
	window   *service.ActiveWindow
	now      func() time.Time
	logger   *zap.Logger
}

// NewReminderJob builds the job.
func NewReminderJob(scanner ReminderScanner, interval, cooldown time.Duration, window *service.ActiveWindow, logger *zap.Logger) *ReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderJob{
		scanner:  scanner,
		interval: interval,
		cooldown: cooldown,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// Run scans once per interval until ctx is cancelled.
func (j *ReminderJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("reminder job started", zap.Duration("interval", j.interval), zap.Duration("cooldown", j.cooldown))
	for {
		select {
		case <-ticker.C:
			j.tick(ctx)
		case <-ctx.Done():
			j.logger.Info("reminder job stopped")
			return
		}
	}
}

func (j *ReminderJob) tick(ctx context.Context) {
	count, err := j.scanner.RunReminderScan(ctx, j.now(), j.cooldown, j.window)
	if err != nil {
		j.logger.Error("reminder scan failed", zap.Error(err))
		return
	}
	if count > 0 {
		j.logger.Info("reminders sent", zap.Int("tickets", count))
	}
}

// WindowFromConfig builds the active window for scheduled scans.
func WindowFromConfig(cfg config.ReminderConfig) *service.ActiveWindow {
	return &service.ActiveWindow{
		StartHour: cfg.WindowStart,
		EndHour:   cfg.WindowEnd,
		Weekdays:  cfg.Weekdays,
		Location:  cfg.Location(),
	}
}
