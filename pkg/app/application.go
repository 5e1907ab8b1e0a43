package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docharvest/internal/agent"
	"docharvest/internal/metrics"
	"docharvest/internal/middleware"
	"docharvest/internal/providers"
	"docharvest/internal/ratelimit"
	"docharvest/internal/services"
	"docharvest/internal/tracing"
	"docharvest/internal/workspace"
	"docharvest/pkg/auth"
	"docharvest/pkg/config"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Extractions     services.ExtractionService
	Logger          *slog.Logger
	RateLimiter     ratelimit.Limiter
	Validator       auth.Validator
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithValidator sets a custom request validator
func WithValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.Validator = validator
		return nil
	}
}

// WithExtractionService replaces the wired extraction pipeline, mainly
// for tests that stub out the agent and uploader.
func WithExtractionService(svc services.ExtractionService) ApplicationOption {
	return func(app *Application) error {
		app.Extractions = svc
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "docharvest", "env", cfg.Env)
	slog.SetDefault(logger)

	redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient)
	metrics.RegisterRedisCollector(redisClient, logger)

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "docharvest",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	workspaces := workspace.NewManager(cfg.WorkRoot, logger)
	runner, err := agent.NewCommandRunner(cfg.AgentCommand, logger)
	if err != nil {
		return nil, err
	}

	var uploader providers.Uploader
	switch cfg.Uploader {
	case "local":
		uploader = providers.NewLocalUploader(cfg.LocalArtifactsDir)
	case "s3":
		uploader, err = providers.NewS3Uploader(context.Background(), providers.S3Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown uploader %q", cfg.Uploader)
	}

	callback := services.NewCallbackService(
		logger,
		cfg.WebhookHmacSecret,
		cfg.CallbackMaxAttempts,
		cfg.CallbackBackoffPolicy,
		cfg.CallbackBaseBackoffSeconds,
		cfg.CallbackMaxBackoffSeconds,
		limiter,
		ratelimit.Bucket(cfg.RateLimit.Webhook),
	)
	extractions := services.NewExtractionService(
		workspaces,
		runner,
		uploader,
		callback,
		logger,
		time.Duration(cfg.AgentTimeoutSeconds)*time.Second,
	)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware("docharvest"),
	)

	app := &Application{
		Config:          cfg,
		Engine:          engine,
		Extractions:     extractions,
		Logger:          logger,
		RateLimiter:     limiter,
		TracingShutdown: shutdown,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	// Create default validator from config if not provided
	if app.Validator == nil && cfg.Auth.Type != "" {
		validator, err := auth.NewValidator(auth.ProviderConfig{
			Type:   cfg.Auth.Type,
			Config: cfg.Auth.Config,
		})
		if err != nil {
			return nil, err
		}
		app.Validator = validator
	}

	return app, nil
}
