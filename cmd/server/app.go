package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibras0696/m-django-work/internal/config"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/notify"
	"github.com/ibras0696/m-django-work/internal/platform/metrics"
	"github.com/ibras0696/m-django-work/internal/platform/postgres"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/service"
	"github.com/ibras0696/m-django-work/internal/service/auth"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	metrics *metrics.Collector

	ids       *idgen.Allocator
	taskStore *postgres.PostgresTaskStore
	jobStore  *postgres.PostgresJobStore

	jwtService auth.JWTService

	runner    *notify.Runner
	closeSink func()
	sweeper   *schedule.Sweeper

	accountService  service.AccountService
	categoryService service.CategoryService
	taskService     service.TaskService
}

// newApplication wires stores, the notification executor and the services
// on top of an open database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.NewCollector(),
	}

	var err error
	app.ids, err = idgen.New(cfg.IDGen.WorkerID,
		idgen.WithRegressionHook(func(lastMS, nowMS int64) {
			app.metrics.RecordClockRegression(lastMS, nowMS)
			logger.Warn("clock moved backwards, continuing on logical clock",
				"last_ms", lastMS,
				"now_ms", nowMS)
		}),
		idgen.WithStallHook(app.metrics.RecordSequenceStall),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create id allocator: %w", err)
	}
	logger.Info("id allocator initialized", "worker_id", app.ids.WorkerID())

	userStore := postgres.NewPostgresUserStore(db, logger)
	profileStore := postgres.NewPostgresBotProfileStore(db, logger)
	categoryStore := postgres.NewPostgresCategoryStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.jobStore = postgres.NewPostgresJobStore(postgres.NewSQLX(db), logger)

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	passwords := auth.NewBcryptVerifier(cfg.Auth.BcryptCost)

	deliverer, closeSink, err := notify.NewDeliverer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification deliverer: %w", err)
	}
	app.closeSink = closeSink

	app.runner, err = notify.NewRunner(app.jobStore, app.taskStore, deliverer,
		notify.RunnerConfigFrom(cfg.Notify), logger,
		notify.WithRunnerRecorder(app.metrics))
	if err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to create notification runner: %w", err)
	}

	reconciler := schedule.NewReconciler(app.runner, logger,
		schedule.WithRecorder(app.metrics),
		schedule.WithPortTimeout(cfg.Notify.PortTimeout))
	gate, err := schedule.NewGate(app.ids, reconciler, app.metrics, logger)
	if err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to create task write gate: %w", err)
	}
	app.sweeper = schedule.NewSweeper(gate, app.taskStore, cfg.Notify.BatchSize, logger)

	if app.accountService, err = service.NewAccountService(
		db, userStore, profileStore, app.jwtService, passwords, app.ids, logger,
	); err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to create account service: %w", err)
	}
	if app.categoryService, err = service.NewCategoryService(categoryStore, app.ids, logger); err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to create category service: %w", err)
	}
	if app.taskService, err = service.NewTaskService(db, app.taskStore, categoryStore, gate, logger); err != nil {
		closeSink()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("application initialized",
		"notify_sink", cfg.Notify.Sink,
		"notify_workers", cfg.Notify.WorkerCount)
	return app, nil
}

// Run starts the notification executor and the sweeper, then serves HTTP
// until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification runner: %w", err)
	}
	if interval := app.config.Notify.SweepInterval; interval > 0 {
		go app.sweeper.Run(ctx, interval)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.logger.Info("stopping notification runner")
		app.runner.Stop()
	}
	if app.closeSink != nil {
		app.closeSink()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}

// openDatabase opens the configured database with a bounded connect time.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established",
		"max_open_conns", cfg.Database.MaxOpenConns)
	return db, nil
}
