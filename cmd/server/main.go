package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/llm-bridge/internal/ai"
	"github.com/suPer8Hu/llm-bridge/internal/chat"
	"github.com/suPer8Hu/llm-bridge/internal/common"
	"github.com/suPer8Hu/llm-bridge/internal/config"
	"github.com/suPer8Hu/llm-bridge/internal/db"
	"github.com/suPer8Hu/llm-bridge/internal/httpapi"
	"github.com/suPer8Hu/llm-bridge/internal/httpapi/handlers"
	"github.com/suPer8Hu/llm-bridge/internal/ingest"
	"github.com/suPer8Hu/llm-bridge/internal/profile"
	"github.com/suPer8Hu/llm-bridge/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-bridge/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(common.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&profile.Profile{}, &chat.UsageRecord{}); err != nil {
		return err
	}

	sealer, err := newSealer(cfg)
	if err != nil {
		return err
	}

	// profile cache is optional
	var cache profile.Cache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		slog.Warn("redis unavailable, profile cache disabled", "addr", cfg.RedisAddr, "err", err)
		_ = rds.Close()
	} else {
		cache = rds
		defer rds.Close()
	}
	cancel()
	profiles := profile.NewService(profile.NewRepo(gdb), sealer, cache, cfg.ProfileCacheTTL)

	var events chat.EventPublisher = chat.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
	}

	reg := ai.NewRegistry()
	reg.Register(ai.ProviderAnthropic, ai.AnthropicFactory(ai.AnthropicConfig{
		BaseURL:          cfg.AnthropicBaseURL,
		DefaultMaxTokens: cfg.DefaultMaxTokens,
	}))
	reg.Register(ai.ProviderBedrock, ai.BedrockFactory(ai.NewBedrockAPI, cfg.DefaultMaxTokens))
	if cfg.OllamaBaseURL != "" {
		reg.Register(ai.ProviderOllama, ai.OllamaFactory(ai.OllamaConfig{BaseURL: cfg.OllamaBaseURL}))
	}

	h := handlers.NewHandler(cfg,
		chat.NewService(profiles, reg, events, chat.NewRepo(gdb)),
		profiles,
		ingest.NewPipeline(ingest.Config{
			TempDir:     cfg.UploadTempDir,
			MaxBytes:    cfg.UploadMaxBytes,
			Concurrency: cfg.IngestConcurrency,
		}),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func newSealer(cfg config.Config) (*profile.Sealer, error) {
	if cfg.ProfileSecretKey != "" {
		key, err := profile.ParseKey(cfg.ProfileSecretKey)
		if err != nil {
			return nil, err
		}
		return profile.NewSealer(key)
	}
	slog.Warn("PROFILE_SECRET_KEY not set, deriving the profile key from JWT_SECRET")
	key, err := profile.DeriveKey(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return profile.NewSealer(key)
}
