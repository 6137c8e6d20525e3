package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claytile-api/internal/application/auth"
	"github.com/claytile-api/internal/config"
	"github.com/claytile-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/claytile-api/internal/infrastructure/jwt"
	natsinfra "github.com/claytile-api/internal/infrastructure/nats"
	"github.com/claytile-api/internal/infrastructure/postgres"
	redisinfra "github.com/claytile-api/internal/infrastructure/redis"
	s3infra "github.com/claytile-api/internal/infrastructure/s3"
	"github.com/claytile-api/internal/infrastructure/smtp"
	"github.com/claytile-api/internal/infrastructure/sns"
	"github.com/claytile-api/internal/pkg/logger"
	transporthttp "github.com/claytile-api/internal/transport/http"
	appmiddleware "github.com/claytile-api/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		log.Fatal("build dependencies", zap.Error(err))
	}
	defer cleanup()

	go auth.NewSweeper(deps.Codes, deps.Sessions, cfg.SweepInterval).Run(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

// buildDeps wires the stores and providers selected by cfg. Optional
// providers that fail to initialize are logged and left nil.
func buildDeps(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, func(), error) {
	deps := &transporthttp.Deps{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		deps.Codes = postgres.NewVerificationRepo(pool)
		deps.Sessions = postgres.NewSessionRepo(pool)
		deps.Files = postgres.NewFileRepo(pool)
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, cleanup, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		deps.Codes = dynamo.NewVerificationRepo(client, cfg.DynamoTables.VerificationCodes)
		deps.Sessions = dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions)
		deps.Files = dynamo.NewFileRepo(client, cfg.DynamoTables.Files)
	}

	deps.Mailer = smtp.NewMailer(cfg)

	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		deps.SMSSender = sender
	} else {
		zap.L().Warn("SNS sender not available", zap.Error(err))
	}

	if cfg.S3BucketName != "" {
		if client, err := s3infra.NewClient(ctx, cfg); err == nil {
			deps.Objects = s3infra.NewStore(client, cfg.S3BucketName, cfg.AWSRegion, cfg.S3PublicBaseURL)
		} else {
			zap.L().Warn("S3 store not available", zap.Error(err))
		}
	} else {
		zap.L().Warn("S3_BUCKET_NAME not set, uploads are disabled")
	}

	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.Signer = p
	} else {
		zap.L().Warn("upload signing keys not available", zap.Error(err))
	}

	deps.Publisher = natsinfra.NewNopPublisher()
	if cfg.NATSURL != "" {
		if nc, err := natsinfra.Connect(cfg.NATSURL); err == nil {
			closers = append(closers, nc.Close)
			deps.Publisher = natsinfra.NewPublisher(nc)
		} else {
			zap.L().Warn("NATS not available, events are dropped", zap.Error(err))
		}
	}

	if cfg.RedisAddr != "" {
		if rdb, err := redisinfra.Connect(ctx, cfg); err == nil {
			closers = append(closers, func() { _ = rdb.Close() })
			deps.Limiter = appmiddleware.NewRedisRateLimiter(rdb, "ratelimit:auth", cfg.RateLimitBurst, time.Second)
		} else {
			zap.L().Warn("redis not available, using in-memory rate limiter", zap.Error(err))
		}
	}

	return deps, cleanup, nil
}
