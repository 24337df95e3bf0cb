package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mathlingo-core/server/internal/agent/graph"
	"github.com/mathlingo-core/server/internal/agent/model"
	"github.com/mathlingo-core/server/internal/agent/repo"
	"github.com/mathlingo-core/server/internal/api"
	"github.com/mathlingo-core/server/internal/core"
	"github.com/mathlingo-core/server/internal/ingress"
	"github.com/mathlingo-core/server/internal/telemetry"
	logx "github.com/mathlingo-core/server/pkg/logger"
	pkgredis "github.com/mathlingo-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis     pkgredis.Config
	HTTP      HTTPConfig
	Ingress   ingress.Config
	Telemetry telemetry.Config

	// Pipeline configs
	LLM        model.LLMConfig
	Classifier model.ClassifierModelConfig
	Responder  model.ResponderModelConfig
	Translator model.TranslatorConfig
	Pipeline   model.PipelineConfig
}

type HTTPConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	pipeline, err := graph.Build(ctx, graph.Config{
		LLM:        cfg.LLM,
		Classifier: cfg.Classifier,
		Responder:  cfg.Responder,
		Translator: cfg.Translator,
		Pipeline:   cfg.Pipeline,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	// one-shot CLI: answer the arguments and exit
	if len(os.Args) > 1 {
		fmt.Println(pipeline.HandleQuery(ctx, strings.Join(os.Args[1:], " ")))
		return
	}

	if cfg.Ingress.Enabled {
		if err := startIngress(ctx, cfg, pipeline); err != nil {
			logx.Fatal().Err(err).Msg("Failed to start stream ingress")
		}
	}

	serve(ctx, cfg.HTTP, pipeline)
}

func startIngress(ctx context.Context, cfg AppConfig, pipeline graph.Runner) error {
	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return fmt.Errorf("initialise redis client: %w", err)
	}
	logx.Info().Msg("Connected to Redis successfully")

	consumer := ingress.NewConsumer(rdb, pipeline,
		repo.NewRedisReplyRepository(rdb, cfg.Ingress.ReplyTTL), cfg.Ingress)
	if err := consumer.EnsureGroup(ctx); err != nil {
		_ = rdb.Close()
		return err
	}

	go func() {
		defer rdb.Close()
		if err := consumer.Run(ctx); err != nil {
			logx.Error().Err(err).Msg("Stream consumer failed")
		}
	}()
	return nil
}

func serve(ctx context.Context, cfg HTTPConfig, pipeline graph.Runner) {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(&api.Handlers{Pipeline: pipeline}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		logx.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	logx.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Fatal().Err(err).Msg("HTTP server failed")
	}
}
