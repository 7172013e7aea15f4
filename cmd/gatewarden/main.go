package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/app"
	"github.com/gatewarden/gatewarden/internal/audit"
	audithttp "github.com/gatewarden/gatewarden/internal/audit/http"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/permcache"
	"github.com/gatewarden/gatewarden/internal/platform/cache"
	"github.com/gatewarden/gatewarden/internal/platform/db"
	"github.com/gatewarden/gatewarden/internal/role"
	"github.com/gatewarden/gatewarden/internal/tenant"
	"github.com/gatewarden/gatewarden/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	permCache := permcache.NewCache(redisClient, cfg.PermCacheTTL)
	invalidator := permcache.NewCoordinator(permCache)

	emitter := audit.NewEmitter(jobClient, logger)

	roleRepo := role.NewRepository(pool)
	groupRepo := group.NewRepository(pool)
	tenantRepo := tenant.NewRepository(pool)

	resolver := role.NewResolver(groupRepo)
	membership := role.NewManager(roleRepo, resolver, invalidator, audit.NewRoleEvents(emitter))
	lifecycle := role.NewLifecycle(role.LifecycleConfig{
		Store:             roleRepo,
		Resolver:          resolver,
		Membership:        membership,
		Invalidator:       invalidator,
		Tenants:           tenantRepo,
		Generator:         acl.NewGenerator(),
		Audit:             audit.NewRoleEvents(emitter),
		DefaultUserRoleID: cfg.DefaultUserRoleID,
		Logger:            logger,
	})
	roleHandler := role.NewHandler(logger, lifecycle, membership)

	groupService := group.NewService(groupRepo, roleRepo, invalidator, audit.NewGroupEvents(emitter), logger)
	groupHandler := group.NewHandler(logger, groupService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, roleRepo, permCache)
	authMiddleware := auth.NewMiddleware(authService, logger)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audithttp.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Auth:         authMiddleware,
		RoleHandler:  roleHandler,
		GroupHandler: groupHandler,
		AuditHandler: auditHandler,
		JobHandler:   jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
