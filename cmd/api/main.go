package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-service/internal/api/http"
	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/persistence"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/scheduler"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
	"github.com/spec-kit/sla-service/internal/worker"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Sla.Timezone)
	if err != nil {
		logger.Fatal("invalid SLA timezone", zap.String("timezone", cfg.Sla.Timezone), zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	configRepo := repository.NewSlaConfigRepository(pool)
	rulesRepo := repository.NewBusinessHoursRepository(pool)
	holidayRepo := repository.NewHolidayRepository(pool)
	pauseRepo := repository.NewPauseRepository(pool)
	resultRepo := repository.NewSlaResultRepository(pool)
	runLogRepo := repository.NewRunLogRepository(pool)

	calendar := sla.NewCalendar(rulesRepo, holidayRepo, loc, logger)
	engine := sla.NewEngine(calendar)

	pauseService := service.NewPauseService(service.PauseDependencies{
		PauseRepo:       pauseRepo,
		Engine:          engine,
		PausingStatuses: cfg.Sla.PausingStatuses,
		Logger:          logger,
	})
	evaluator := sla.NewEvaluator(engine, pauseService, logger)
	holidayService := service.NewHolidayService(holidayRepo, calendar, logger)

	metrics := observability.NewMetrics()

	var rd *persistence.Redis
	var backend cache.Backend
	var statsProvider handlers.CacheStatsProvider
	if cfg.Redis.Enabled {
		rd = persistence.NewRedis(cfg.Redis, logger)
		defer rd.Close()
		backend = cache.NewRedisBackend(rd.Client, cfg.App.Name)
	} else {
		memory := cache.NewMemoryBackend()
		backend = memory
		statsProvider = memory
	}
	store := cache.NewStore(backend, nil, logger)

	recomputeService := service.NewRecomputeService(service.RecomputeDependencies{
		TicketRepo: ticketRepo,
		ConfigRepo: configRepo,
		ResultRepo: resultRepo,
		RunLogRepo: runLogRepo,
		Evaluator:  evaluator,
		Store:      store,
		Metrics:    metrics,
		SlaConfig:  cfg.Sla,
		CacheCfg:   cfg.Cache,
		Logger:     logger,
	})

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartPauseWorker(dispatcher, pauseService, calendar, logger)

	sched := scheduler.New(recomputeService, cfg.Sla.SchedulerInterval(), logger)
	sched.Start(ctx)
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rd),
		Sla:    handlers.NewSlaHandler(store, recomputeService),
		Admin: handlers.NewAdminHandler(handlers.AdminDependencies{
			Scheduler:  sched,
			RunLog:     runLogRepo,
			CacheStats: statsProvider,
			Metrics:    metrics,
			Holidays:   holidayService,
			Pauses:     pauseService,
			Dispatcher: dispatcher,
		}),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
