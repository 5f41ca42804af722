package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socio-dl/socio-go/internal/config"
	"github.com/socio-dl/socio-go/internal/db"
	"github.com/socio-dl/socio-go/internal/events"
	"github.com/socio-dl/socio-go/internal/handler"
	"github.com/socio-dl/socio-go/internal/media"
	"github.com/socio-dl/socio-go/internal/metrics"
	"github.com/socio-dl/socio-go/internal/middleware"
	"github.com/socio-dl/socio-go/internal/platform"
	"github.com/socio-dl/socio-go/internal/repository"
	"github.com/socio-dl/socio-go/internal/router"
	"github.com/socio-dl/socio-go/internal/service"
	"github.com/socio-dl/socio-go/internal/storage"
)

const (
	appName = "socio-go"
	version = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		middleware.InitLogger("info", appName)
		middleware.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	middleware.InitLogger(cfg.LogLevel, appName)
	log := middleware.Logger
	for _, w := range cfg.Warnings {
		log.Warn().Msg("config: " + w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer cleanup()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Environment).
		Int64("max_per_day", cfg.Quota.MaxPerDay).
		Int("max_concurrent", cfg.Jobs.MaxConcurrent).
		Msg("socio-go starting")

	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Error().Err(err).Msg("server stopped")
		cleanup()
		os.Exit(1)
	}
}

// buildApp wires stores, services and handlers, starts the background
// workers and returns the app. It does not block; workers stop with ctx.
// cleanup releases every opened resource and is safe to call more than once.
func buildApp(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	log := middleware.Logger
	var closers []func()
	done := false
	cleanup := func() {
		if done {
			return
		}
		done = true
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*fiber.App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	// History: Postgres when configured, otherwise process memory.
	var pool *pgxpool.Pool
	var history service.HistoryStore
	var historyCheck handler.Pinger
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, middleware.Component("db"))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)

		repo := repository.NewJobRepo(pool, cfg.History.MaxLimit)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		history = repo
		historyCheck = repo
	} else {
		log.Warn().Msg("DATABASE_URL not set, download history is kept in memory")
		history = repository.NewMemoryJobRepo(cfg.History.MaxLimit)
	}

	quotaStore := service.NewQuotaStoreFromURL(cfg.RedisURL, cfg.Quota.Timeout, middleware.Component("quota"))
	closers = append(closers, func() { _ = quotaStore.Close() })

	ytdlp := media.NewYtDlp(cfg.Fetcher.YtDlpPath, middleware.Component("ytdlp"))
	fetcher := media.NewRouter(ytdlp)
	if cfg.Fetcher.YouTubeNative {
		fetcher.Handle(platform.YouTube, media.NewYouTube(middleware.Component("youtube")))
	}

	var uploader service.Uploader
	var filesDir string
	if cfg.Upload.Cloudinary() {
		cld, err := storage.NewCloudinary(cfg.Upload.CloudName, cfg.Upload.APIKey, cfg.Upload.APISecret, middleware.Component("cloudinary"))
		if err != nil {
			return fail(err)
		}
		uploader = cld
	} else {
		local, err := storage.NewLocal(cfg.Upload.PublicDir, cfg.Upload.PublicBaseURL, middleware.Component("storage"))
		if err != nil {
			return fail(err)
		}
		filesDir = local.Dir()
		log.Warn().Str("dir", filesDir).Msg("cloudinary not configured, serving artifacts locally")
		uploader = local
	}

	var publisher service.EventPublisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		mq, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
			QueueName:  cfg.AMQP.QueueName,
		}, middleware.Component("events"))
		if err != nil {
			log.Error().Err(err).Msg("rabbitmq unavailable, job events disabled")
		} else {
			closers = append(closers, func() { _ = mq.Close() })
			publisher = mq
		}
	}

	quotaSvc := service.NewQuotaService(quotaStore, cfg.Quota.MaxPerDay, cfg.Location(), middleware.Component("quota"))
	jobSvc := service.NewJobService(fetcher, uploader, service.JobConfig{
		WorkDir:     cfg.Jobs.WorkDir,
		Folder:      cfg.Upload.Folder,
		ArtifactTTL: cfg.Jobs.ArtifactTTL,
	}, middleware.Component("job"))
	downloadSvc := service.NewDownloadService(service.DownloadDeps{
		Quota:      quotaSvc,
		Jobs:       jobSvc,
		Slots:      service.NewJobSlots(cfg.Jobs.MaxConcurrent, cfg.Jobs.QueueWait),
		History:    history,
		Fetcher:    fetcher,
		Events:     publisher,
		JobTimeout: cfg.Jobs.Timeout,
	}, middleware.Component("download"))

	metrics.Register(pool)

	janitor := service.NewJanitor(service.JanitorConfig{
		WorkDir:         cfg.Jobs.WorkDir,
		WorkspaceMaxAge: cfg.Jobs.Timeout,
		ArtifactDir:     filesDir,
		ArtifactTTL:     cfg.Jobs.ArtifactTTL,
		Interval:        cfg.Jobs.JanitorInterval,
	}, middleware.Component("janitor"))
	go janitor.Start(ctx)
	closers = append(closers, janitor.Stop)

	infoLimiter := middleware.NewVideoInfoRateLimiter(cfg.InfoRatePerMin)
	infoLimiter.StartCleanup(ctx)

	h := &router.Handlers{
		Root:        handler.Root(appName, version, cfg.Quota.MaxPerDay),
		Health:      handler.NewHealthHandler(historyCheck, quotaStore.Client(), version),
		VideoInfo:   handler.NewVideoInfoHandler(downloadSvc),
		Usage:       handler.NewUsageHandler(downloadSvc),
		Download:    handler.NewDownloadHandler(downloadSvc, cfg.Jobs.DefaultFormat),
		History:     handler.NewHistoryHandler(downloadSvc, cfg.History.DefaultLimit, cfg.History.MaxLimit),
		InfoLimiter: infoLimiter,
	}
	if filesDir != "" {
		h.Files = handler.NewFilesHandler(filesDir)
	}

	// A download holds its request open for the whole job.
	app := fiber.New(fiber.Config{
		AppName:      "Socio Downloader API",
		ServerHeader: appName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Jobs.Timeout + cfg.Jobs.QueueWait + time.Minute,
		IdleTimeout:  2 * time.Minute,
	})
	router.Setup(app, h, cfg.CORSOrigins)

	return app, cleanup, nil
}
