package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/email"
	"github.com/motheroflaunch/backend/internal/handlers"
	"github.com/motheroflaunch/backend/internal/jobs"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/middleware"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/search"
	"github.com/motheroflaunch/backend/internal/storage"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const searchCacheTTL = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	logger.Log.Info("=== Mother of Launch server starting ===", zap.String("environment", cfg.Environment))

	if cfg.Auth.JWTSecret == "" {
		logger.Log.Fatal("AUTH_JWT_SECRET environment variable is required")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	if err := database.Initialize(cfg); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}
	if cfg.Telemetry.Enabled {
		if err := database.DB.Use(telemetry.GORMTracingPlugin()); err != nil {
			logger.WarnWithFields("Failed to install GORM tracing", err)
		}
	}

	// Redis is optional. Without it locks and rate limits are per process
	// and view counts are written straight through.
	var rc *cache.RedisClient
	var locker cache.Locker = cache.NewLocalLocker()
	if cfg.Redis.Host != "" {
		rc, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WarnWithFields("Redis unavailable - running single-instance mode", err)
			rc = nil
		} else {
			defer rc.Close()
			locker = cache.NewRedisLocker(rc, cfg.Launch.LockTTL)
		}
	} else {
		logger.Log.Warn("REDIS_HOST not set - running single-instance mode")
	}

	hub := live.NewHub()
	go hub.Run(ctx)

	premiumSvc := premium.NewService(database.DB)

	launchCfg := launch.DefaultConfig()
	launchCfg.FreeCapacity = cfg.Launch.FreeCapacity
	launchCfg.PremiumCapacity = cfg.Launch.PremiumCapacity
	launchCfg.FreeLeadDays = cfg.Launch.FreeLeadDays

	opts := []launch.Option{launch.WithPublisher(hub)}
	if rc != nil {
		opts = append(opts, launch.WithRedis(rc))
	}

	var uploader *storage.S3Uploader
	if cfg.AWS.Bucket != "" {
		uploader, err = storage.NewS3Uploader(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNBaseURL)
		if err != nil {
			logger.FatalWithFields("Failed to initialize S3 uploader", err)
		}
		if err := uploader.CheckBucketAccess(ctx); err != nil {
			logger.WarnWithFields("S3 bucket access failed - uploads and backups will fail", err)
		}
		opts = append(opts, launch.WithBackupStore(uploader))
	} else {
		logger.Log.Warn("AWS_BUCKET not set - image uploads disabled, backups kept in the database only")
	}

	var mailer email.Mailer = email.NoopMailer{}
	if cfg.Email.From != "" {
		ses, err := email.NewEmailService(ctx, cfg.AWS.Region, cfg.Email.From, cfg.Email.Name, cfg.Email.SiteURL)
		if err != nil {
			logger.WarnWithFields("Email disabled", err)
		} else {
			mailer = ses
		}
	}
	opts = append(opts, launch.WithMailer(mailer))

	launches := launch.NewService(database.DB, locker, premiumSvc, launchCfg, opts...)

	h := handlers.NewHandlers(database.DB, launches, premiumSvc)
	h.SetMailer(mailer)
	if uploader != nil {
		h.SetUploader(uploader)
	}

	var searcher search.Searcher = search.NewDBSearcher(database.DB)
	if cfg.Search.URL != "" {
		client, err := search.NewClient(cfg.Search.URL, telemetry.HTTPTransport(nil))
		if err != nil {
			logger.WarnWithFields("Elasticsearch unavailable - falling back to database search", err)
		} else if err := client.InitializeIndices(ctx); err != nil {
			logger.WarnWithFields("Failed to initialize search indices - falling back to database search", err)
		} else {
			searcher = client
		}
	}
	if rc != nil {
		searcher = search.NewCachedSearcher(searcher, rc, searchCacheTTL)
	}
	h.SetSearcher(searcher)
	if rc != nil {
		h.SetRedis(rc)
	}
	h.SetLiveHandler(live.NewHandler(hub, cfg.HTTP.AllowedOrigins))
	h.SetRateLimits(cfg.RateLimit.Requests, cfg.RateLimit.Votes, cfg.RateLimit.Window)

	runner := jobs.NewRunner()
	runner.Add(jobs.FinalizeLaunches(launches, cfg.Launch.FinalizeEvery))
	runner.Add(jobs.ExpirePremium(premiumSvc, cfg.Jobs.PremiumSweepEvery, time.Now))
	runner.Add(jobs.FlushViews(h.ViewCounter(), cfg.Jobs.ViewFlushEvery))
	runner.Start()
	defer runner.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.HTTP.AllowedOrigins
	if len(corsCfg.AllowOrigins) == 0 || corsCfg.AllowOrigins[0] == "*" {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsCfg))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/launches/live", "/metrics"})))

	if cfg.Telemetry.Enabled {
		r.Use(middleware.TracingMiddleware(cfg.ServiceName))
		r.Use(middleware.SpanAttributes())
	}
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, h.Users())
	h.RegisterRoutes(r, auth, rc)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Log.Info("Mother of Launch backend starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	// Stopping the hub closes open leaderboard streams
	stop()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
	}

	logger.Log.Info("Server exited")
}
