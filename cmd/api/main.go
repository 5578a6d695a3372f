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

	httptransport "github.com/spec-kit/credit-transfer/internal/api/http"
	"github.com/spec-kit/credit-transfer/internal/api/http/handlers"
	"github.com/spec-kit/credit-transfer/internal/artifact"
	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/config"
	"github.com/spec-kit/credit-transfer/internal/events"
	"github.com/spec-kit/credit-transfer/internal/mail"
	"github.com/spec-kit/credit-transfer/internal/observability"
	"github.com/spec-kit/credit-transfer/internal/persistence"
	"github.com/spec-kit/credit-transfer/internal/repository"
	"github.com/spec-kit/credit-transfer/internal/repository/memory"
	"github.com/spec-kit/credit-transfer/internal/service"
	"github.com/spec-kit/credit-transfer/internal/storage"
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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo    repository.UserRepository
		appRepo     repository.ApplicationRepository
		historyRepo repository.ApplicationHistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
		appRepo = repository.NewApplicationRepository(pool)
		historyRepo = repository.NewApplicationHistoryRepository(pool)
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		userRepo = memory.NewUserStore()
		appRepo = memory.NewApplicationStore()
		historyRepo = memory.NewHistoryStore()
	}

	limits := storage.Limits{MaxBytes: cfg.Storage.MaxUploadBytes, ContentTypes: []string{storage.ContentTypePDF}}
	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	if redis != nil {
		deps["redis"] = redis
	}

	var blobs storage.BlobStore
	if cfg.Storage.Endpoint != "" {
		minioStore, err := storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			Limits:    limits,
		})
		if err != nil {
			logger.Fatal("failed to init object storage", zap.Error(err))
		}
		blobs = minioStore
		deps["storage"] = minioStore
	} else {
		logger.Warn("STORAGE_ENDPOINT not provided; storing files in memory")
		blobs = storage.NewMemoryStore(limits)
	}

	var mailer mail.Sender
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			Timeout:  cfg.Mail.Timeout(),
		})
	} else {
		logger.Warn("MAIL_HOST not provided; emails are logged, not sent")
		mailer = mail.NewLogSender(logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, userRepo, mailer, logger, cfg.App.PublicURL).RegisterHandlers()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
		Mailer:   mailer,
		Logger:   logger,
	})

	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := authService.EnsureAdmin(bootstrapCtx, cfg.Admin); err != nil {
		logger.Error("admin bootstrap failed; continuing", zap.Error(err))
	}
	bootstrapCancel()

	linker := artifact.NewLinker(artifact.NewPDFRenderer(cfg.Render.Institution), blobs, cfg.Render.Timeout(), logger)
	applicationService := service.NewApplicationService(service.ApplicationDependencies{
		ApplicationRepo: appRepo,
		HistoryRepo:     historyRepo,
		UserRepo:        userRepo,
		Linker:          linker,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	fileService := service.NewFileService(blobs, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 64*1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareOptions{
		Timeout: cfg.App.RequestTimeout(),
		Debug:   cfg.App.IsDevelopment(),
	})

	var authRateLimit fiber.Handler
	if redis != nil {
		limiter := httptransport.NewRedisFixedWindowLimiter(redis.Client, "rl:auth")
		authRateLimit = httptransport.RateLimit(limiter, cfg.RateLimit.Max, cfg.RateLimit.Window(), logger)
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Applications:   handlers.NewApplicationsHandler(applicationService),
		Files:          handlers.NewFilesHandler(fileService, cfg.Storage.MaxUploadBytes),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		AuthRateLimit:  authRateLimit,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
