package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/request-desk/internal/api/http"
	"github.com/spec-kit/request-desk/internal/api/http/handlers"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/cache"
	"github.com/spec-kit/request-desk/internal/channels"
	"github.com/spec-kit/request-desk/internal/config"
	"github.com/spec-kit/request-desk/internal/events"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/persistence"
	"github.com/spec-kit/request-desk/internal/repository"
	"github.com/spec-kit/request-desk/internal/repository/memstore"
	"github.com/spec-kit/request-desk/internal/service"
	"github.com/spec-kit/request-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewStore(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = memstore.New()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	recorder := service.NewActivityRecorder(logger)

	ticketCache := cache.NewTicketCache(redis.Handle(), cache.Options{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.CacheTTL,
	}, logger)
	invalidator := cache.NewInvalidator(ticketCache, redis.Handle(), cfg.Redis.InvChannel, instanceID(), logger)
	invalidator.RegisterHandlers(dispatcher)
	go invalidator.Listen(ctx)

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

	pool := worker.NewPool(cfg.Notification.Workers, cfg.Notification.QueueSize, 2*cfg.Notification.ChannelTimeout, logger)
	pool.Start()
	service.NewNotificationRouter(store, notifications, pool, logger).RegisterHandlers(dispatcher)

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:           store,
		Recorder:        recorder,
		Dispatcher:      dispatcher,
		Cache:           ticketCache,
		Logger:          logger,
		DefaultPageSize: cfg.Workflow.DefaultPageSize,
	})
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Store:              store,
		Recorder:           recorder,
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Logger:             logger,
		MaxRejectionReason: cfg.Workflow.MaxRejectionReason,
	})

	var locker service.ScanLocker
	if rc := redis.Handle(); rc != nil {
		locker = cache.NewRedisLocker(rc, cfg.Redis.KeyPrefix+":reminder-scan", cfg.Redis.LockTTL, logger)
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
	if cfg.Reminder.Enabled {
		go worker.NewReminderJob(reminders, cfg.Reminder.Interval, cfg.Reminder.Cooldown, window, logger).Run(ctx)
	}

	checks := []handlers.DependencyCheck{{Name: "postgres", Ping: pg.Ping}}
	if redis.Handle() != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Workflow:       handlers.NewWorkflowHandler(workflow),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Admin:          handlers.NewAdminHandler(reminders, cfg.Reminder.Cooldown, window, metrics),
		Directory:      handlers.NewDirectoryHandler(service.NewDirectoryService(store)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	_ = app.Shutdown()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer drainCancel()
	_ = pool.Stop(drainCtx)
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
