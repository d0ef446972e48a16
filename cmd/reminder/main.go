package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/cache"
	"github.com/spec-kit/request-desk/internal/channels"
	"github.com/spec-kit/request-desk/internal/config"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/persistence"
	"github.com/spec-kit/request-desk/internal/repository"
	"github.com/spec-kit/request-desk/internal/service"
	"github.com/spec-kit/request-desk/internal/worker"
)

// reminder runs a single reminder scan and exits. It is meant for cron-style
// schedulers; overlapping runs are safe.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		cooldown    = flag.Duration("cooldown", cfg.Reminder.Cooldown, "minimum time between reminders for one ticket")
		windowStart = flag.Int("window-start", cfg.Reminder.WindowStart, "first hour (0-23) reminders may be sent")
		windowEnd   = flag.Int("window-end", cfg.Reminder.WindowEnd, "hour (0-24) reminders stop; equal to start means all day")
		timezone    = flag.String("timezone", cfg.Reminder.Timezone, "IANA time zone for the window")
		weekdays    = flag.String("weekdays", "", "comma separated weekdays, e.g. mon,tue,wed (default from REMINDER_WEEKDAYS)")
		noWindow    = flag.Bool("ignore-window", false, "scan regardless of the active window")
	)
	flag.Parse()

	cfg.Reminder.WindowStart = *windowStart
	cfg.Reminder.WindowEnd = *windowEnd
	cfg.Reminder.Timezone = *timezone
	if _, err := time.LoadLocation(*timezone); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --timezone: %v\n", err)
		os.Exit(2)
	}
	if *weekdays != "" {
		days, err := config.ParseWeekdays(*weekdays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --weekdays: %v\n", err)
			os.Exit(2)
		}
		cfg.Reminder.Weekdays = days
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required for reminder scans")
	}
	store := repository.NewStore(pg.PoolHandle())

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var locker service.ScanLocker
	if rc := redis.Handle(); rc != nil {
		locker = cache.NewRedisLocker(rc, cfg.Redis.KeyPrefix+":reminder-scan", cfg.Redis.LockTTL, logger)
	}

	metrics := observability.NewMetrics()
	senders := channels.FromConfig(cfg.Notification)
	notifications, err := service.NewNotificationService(service.NotificationDependencies{
		Store:          store,
		Group:          senders.Group,
		Direct:         senders.Direct,
		Email:          senders.Email,
		ChannelTimeout: cfg.Notification.ChannelTimeout,
		PublicURL:      cfg.App.PublicURL,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to load notification templates", zap.Error(err))
	}

	reminders := service.NewReminderService(service.ReminderDependencies{
		Store:       store,
		Notifier:    notifications,
		Locker:      locker,
		Metrics:     metrics,
		Logger:      logger,
		Concurrency: cfg.Reminder.Concurrency,
		BatchSize:   cfg.Reminder.BatchSize,
	})

	window := worker.WindowFromConfig(cfg.Reminder)
	if *noWindow {
		window = nil
	}
	count, err := reminders.RunReminderScan(ctx, time.Now(), *cooldown, window)
	if err != nil {
		logger.Fatal("reminder scan failed", zap.Error(err))
	}
	logger.Info("reminder scan complete", zap.Int("reminded", count))
}
