package app

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/dbpull/internal/adapter/compressor"
	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/adapter/estimator"
	"github.com/semmidev/dbpull/internal/adapter/storage"
	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/logger"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
	"github.com/semmidev/dbpull/internal/infrastructure/queue"
	"github.com/semmidev/dbpull/internal/infrastructure/scheduler"
	"github.com/semmidev/dbpull/internal/server"
	"github.com/semmidev/dbpull/internal/usecase"
)

const cleanupSchedule = "0 0 3 * * *"

type Options struct {
	Debug bool
	// Quiet keeps info logs off the console while a progress bar is drawn.
	Quiet bool
}

type App struct {
	config        *config.Config
	logger        *logger.Logger
	service       *usecase.Service
	store         *queue.Store
	uploadTargets []usecase.UploadTarget
	cleanupUC     *usecase.Cleanup
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	level := cfg.App.LogLevel
	if opts.Debug {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, File: cfg.App.LogFile, Quiet: opts.Quiet})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Debugf("Starting %s (env: %s)", cfg.App.Name, cfg.App.Env)

	runner := procrun.New()
	mysql := database.NewMySQL(database.Tools{
		MySQL:     cfg.Tools.MySQL,
		MySQLDump: cfg.Tools.MySQLDump,
		PV:        cfg.Tools.PV,
	})

	puller := usecase.NewPuller(usecase.PullerConfig{
		BackupDir:    cfg.Pull.BackupDir,
		PollInterval: cfg.Pull.PollInterval,
		ImportMode:   cfg.Pull.ImportMode,
		SSHBinary:    cfg.Tools.SSH,
	}, runner, mysql, estimator.NewFactory(runner, mysql, cfg.Pull.EstimateTimeout, log), log)

	var (
		store *queue.Store
		jobs  usecase.JobQueue
	)
	if cfg.Queue.Path != "" {
		store, err = queue.Open(cfg.Queue.Path)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to open job queue: %w", err)
		}
		jobs = store
	}

	uploadTargets := initializeUploadTargets(ctx, cfg, log)
	offsite := usecase.NewOffsite(uploadTargets, compressor.NewPgzip(), log, cfg.Backup.Compress, usecase.DefaultRetryPolicy)

	service := usecase.NewService(cfg, puller, jobs, offsite, initializeNotifier(cfg, log), log)

	return &App{
		config:        cfg,
		logger:        log,
		service:       service,
		store:         store,
		uploadTargets: uploadTargets,
		cleanupUC:     usecase.NewCleanup(uploadTargets, log, cfg.Backup.RetentionDays, cfg.Local.Database),
	}, nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "local":
			stor, err = storage.NewLocal(targetCfg.Path)
			if err != nil {
				log.Errorf("Failed to initialize local mirror: %v", err)
				continue
			}
			log.Debugf("✓ Local mirror enabled (%s)", targetCfg.Path)

		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Debugf("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Debugf("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			stor, err = storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			log.Debugf("✓ Telegram upload enabled")

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

func initializeNotifier(cfg *config.Config, log *logger.Logger) domain.Notifier {
	if !cfg.Notify.Telegram.Enabled {
		return nil
	}

	notifier, err := storage.NewTelegramNotifier(cfg.Notify.Telegram)
	if err != nil {
		log.Errorf("Failed to initialize Telegram notifications: %v", err)
		return nil
	}
	return notifier
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// Pull runs one pull in the foreground.
func (a *App) Pull(ctx context.Context, req domain.JobRequest, sink domain.ProgressSink) (*domain.Outcome, error) {
	return a.service.RunNow(ctx, req, sink)
}

func (a *App) Enqueue(ctx context.Context, req domain.JobRequest) (uint, error) {
	return a.service.Enqueue(ctx, req)
}

func (a *App) Jobs(ctx context.Context, limit int) ([]queue.Job, error) {
	if a.store == nil {
		return nil, fmt.Errorf("background queue is not configured")
	}
	return a.store.List(ctx, limit)
}

// Serve runs the queue worker, the schedules and the HTTP server until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("background queue is not configured")
	}

	sched := scheduler.New(a.logger)

	if spec := a.config.Pull.Schedule; spec != "" {
		err := sched.AddJob(spec, "pull", func(ctx context.Context) error {
			_, err := a.service.Enqueue(ctx, domain.JobRequest{Trigger: "schedule"})
			return err
		})
		if err != nil {
			return err
		}
		a.logger.Infof("Scheduled pull: %s", spec)
	}

	if err := sched.AddJob(cleanupSchedule, "cleanup", a.cleanupUC.Execute); err != nil {
		return err
	}
	a.logger.Infof("Scheduled offsite cleanup: %s", cleanupSchedule)

	var srv *server.Server
	if a.config.Server.Addr != "" {
		srv = server.New(a.config.Server.Addr, a.store, a.service, a.logger)
		srv.Start()
	}

	sched.Start()
	a.logger.Infof("Serving with %d offsite target(s)", len(a.uploadTargets))

	worker := queue.NewWorker(a.store, a.service.RunQueued, a.config.Queue.PollInterval, a.logger)
	err := worker.Run(ctx)

	a.logger.Infof("Shutting down...")
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if serr := srv.Stop(shutdownCtx); serr != nil {
			a.logger.Warnf("HTTP server shutdown: %v", serr)
		}
	}

	return err
}

func (a *App) Shutdown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnf("Failed to close job queue: %v", err)
		}
	}
	a.logger.Close()
}
