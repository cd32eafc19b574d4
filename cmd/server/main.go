package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/handler"
	"github.com/ecoterra/siteapi/internal/infrastructure/logger"
	"github.com/ecoterra/siteapi/internal/infrastructure/redis"
	"github.com/ecoterra/siteapi/internal/observability/tracing"
	"github.com/ecoterra/siteapi/internal/reliability/circuitbreaker"
	"github.com/ecoterra/siteapi/internal/reliability/retry"
	"github.com/ecoterra/siteapi/internal/repository"
	"github.com/ecoterra/siteapi/internal/security/audit"
	"github.com/ecoterra/siteapi/internal/security/auth"
	"github.com/ecoterra/siteapi/internal/security/middleware"
	"github.com/ecoterra/siteapi/internal/security/password"
	"github.com/ecoterra/siteapi/internal/security/ratelimit"
	"github.com/ecoterra/siteapi/internal/server"
	"github.com/ecoterra/siteapi/internal/service"
	"github.com/ecoterra/siteapi/internal/storage"
	"github.com/ecoterra/siteapi/internal/worker"
	"github.com/ecoterra/siteapi/pkg/config"
)

const (
	serviceName     = "siteapi"
	shutdownTimeout = 30 * time.Second
	minSecretLength = 32
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "siteapi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting site API",
		slog.String("environment", cfg.Environment),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("upload_backend", cfg.Upload.Backend),
	)
	if !cfg.IsDevelopment() && len(cfg.JWTSecret) < minSecretLength {
		log.Warn("JWT_SECRET is shorter than recommended", slog.Int("min_length", minSecretLength))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Tracing (no-op without an OTLP endpoint)
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shCtx); err != nil {
			log.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	// 4. Credential store with the seeded operator
	users := auth.NewUserStore()
	adminHash, err := adminPasswordHash(cfg.Admin)
	if err != nil {
		return err
	}
	adminID, err := users.Seed(cfg.Admin.Username, cfg.Admin.Email, adminHash, domain.RoleAdmin)
	if err != nil {
		return err
	}
	log.Info("admin account seeded", slog.String("user_id", adminID), slog.String("username", cfg.Admin.Username))

	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, users)
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	// 5. Repositories and blob storage
	checks := map[string]handler.Check{}
	stores, err := openStores(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.close(); err != nil {
			log.Error("failed to close stores", slog.String("error", err.Error()))
		}
	}()

	blobs, local, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	checks["storage"] = blobs.Ping
	if guarded, ok := blobs.(*storage.GuardedStore); ok {
		checks["storage"] = guarded.Check
	}
	uploadDir := ""
	if local != nil {
		uploadDir = local.Dir()
	}

	// 6. Services
	loginAttempts := ratelimit.NewLimiter(10, 15*time.Minute)
	defer loginAttempts.Stop()

	authService := service.NewAuthService(users, tokenManager, loginAttempts, log)
	teamService := service.NewTeamService(stores.team, log)
	projectService := service.NewProjectService(stores.projects, log)
	imageService := service.NewImageService(stores.images, blobs, cfg.Upload.MaxBytes, log)

	// 7. Handlers and router
	ipLimit, err := middleware.NewIPRateLimiter(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT %q: %w", cfg.RateLimit, err)
	}

	realIP, err := middleware.TrustedRealIP(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	rs := handler.NewResponder(log, cfg.IsDevelopment())
	router := server.NewRouter(server.RouterConfig{
		Logger:      log,
		Responder:   rs,
		Verifier:    tokenManager,
		Audit:       audit.NewLogger(log),
		Health:      handler.NewHealthHandler(checks, rs, log),
		Auth:        handler.NewAuthHandler(authService, rs, log),
		Company:     handler.NewCompanyHandler(cfg.Company, rs, log),
		Images:      handler.NewImageHandler(imageService, rs, log),
		Team:        handler.NewCatalogHandler(teamService, rs),
		Projects:    handler.NewCatalogHandler(projectService, rs),
		UploadDir:   uploadDir,
		CORSOrigins: cfg.CORSAllowedOrigins,
		IPRateLimit: ipLimit,
		RealIP:      realIP,
		Development: cfg.IsDevelopment(),
		Metrics:     true,
	})

	// 8. Start HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           tracing.Handler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if local != nil && cfg.Upload.SweepInterval > 0 {
		sweeper := worker.NewUploadSweeper(local, stores.images, log, cfg.Upload.SweepInterval, cfg.Upload.SweepGrace)
		g.Go(func() error {
			sweeper.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("server starting",
			slog.Int("port", cfg.ServerPort),
			slog.String("rate_limit", cfg.RateLimit),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

// adminPasswordHash prefers a pre-computed hash so no cleartext password
// needs to live in the environment.
func adminPasswordHash(admin config.AdminConfig) (string, error) {
	if admin.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(admin.PasswordHash)); err != nil {
			return "", fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		return admin.PasswordHash, nil
	}
	if len(admin.Password) < password.MinLength {
		return "", fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", password.MinLength)
	}
	return password.Hash(admin.Password)
}

type backends struct {
	team     domain.TeamRepository
	projects domain.ProjectRepository
	images   domain.ImageRepository
	close    func() error
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger, checks map[string]handler.Check) (*backends, error) {
	if cfg.StoreBackend != config.StoreRedis {
		return &backends{
			team:     repository.NewTeamMemoryStore(),
			projects: repository.NewProjectMemoryStore(),
			images:   repository.NewMemoryImageRepository(),
			close:    func() error { return nil },
		}, nil
	}

	client, err := retry.Do(ctx, retry.StartupConfig(), log, "connect redis", func(ctx context.Context) (*redis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL)
	})
	if err != nil {
		return nil, err
	}
	checks["redis"] = client.Ping

	return &backends{
		team:     repository.NewTeamRedisStore(client, log),
		projects: repository.NewProjectRedisStore(client, log),
		images:   repository.NewCachedImageRepository(repository.NewRedisImageRepository(client), cfg.ImageCacheTTL),
		close:    client.Close,
	}, nil
}

// openStorage returns the blob store and, for the local backend, the store
// whose directory is served under /uploads
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, *storage.LocalStore, error) {
	if cfg.Upload.Backend != config.UploadS3 {
		local := storage.NewLocalStore(cfg.Upload.Dir, "/uploads")
		return local, local, nil
	}

	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:        cfg.Upload.S3Bucket,
		Region:        cfg.Upload.S3Region,
		Endpoint:      cfg.Upload.S3Endpoint,
		AccessKey:     cfg.Upload.S3AccessKey,
		SecretKey:     cfg.Upload.S3SecretKey,
		PublicBaseURL: cfg.Upload.S3PublicBaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	_, err = retry.Do(ctx, retry.StartupConfig(), log, "ping s3 bucket", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s3Store.Ping(ctx)
	})
	if err != nil {
		return nil, nil, err
	}
	guarded := storage.NewGuardedStore(s3Store, circuitbreaker.Settings{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}, log)
	return guarded, nil, nil
}
