package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat/cmd/api/middleware"
	"ai-chat/cmd/api/router"
	"ai-chat/cmd/api/services"
	"ai-chat/cmd/internal/storage"
	"ai-chat/config"
	"ai-chat/eventbus"
	"ai-chat/httpclient"
	"ai-chat/llm"
	"ai-chat/logger"
)

// @title           AI Chat API
// @version         1.0
// @description     Chat persistence and streaming completion API
// @BasePath        /
func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	if err := config.ValidateServer(cfg); err != nil {
		logger.Log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Errorf("failed to open storage: %v", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.Log.Errorf("failed to close storage: %v", err)
		}
	}()

	var publisher eventbus.Publisher
	if cfg.EventBus.Enabled {
		bus, err := newEventBus(ctx)
		if err != nil {
			// 제목 생성은 부가 기능이라 API 는 계속 띄운다.
			logger.Log.Warnf("event bus disabled: %v", err)
		} else {
			defer bus.Close()
			publisher = bus
		}
	}

	provider, clientModel, err := newProvider(ctx, cfg)
	if err != nil {
		logger.Log.Errorf("failed to create completion provider: %v", err)
		os.Exit(1)
	}

	var limiter *middleware.IPRateLimiter
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		limiter = middleware.NewIPRateLimiter(rl.RequestsPerSecond, rl.Burst)
	}

	r := router.New(router.Deps{
		Chats: services.NewChatService(stores.Chats, stores.Messages, publisher),
		Completions: services.NewCompletionService(
			provider,
			cfg.Server.CompletionModel,
			clientModel,
			time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
		),
		Limiter: limiter,
		Storage: stores.Driver,
		Ping:    stores.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoWithFields("api server listening", logger.Fields{
			"addr":     cfg.Server.Addr,
			"storage":  stores.Driver,
			"provider": cfg.Server.CompletionProvider,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("api server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("received shutdown signal, shutting down api server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("graceful shutdown failed: %v", err)
	}
	logger.Log.Info("api server stopped")
}

// newProvider returns the completion provider and whether it accepts the
// model id sent by clients.
func newProvider(ctx context.Context, cfg config.AppConfig) (llm.Provider, bool, error) {
	switch cfg.Server.CompletionProvider {
	case "gemini":
		p, err := llm.NewGeminiProvider(ctx, cfg.Provider.GeminiAPIKey)
		return p, false, err
	case "openrouter":
		p, err := llm.NewOpenRouterProvider(llm.OpenRouterConfig{
			APIKey:     cfg.Provider.OpenRouterAPIKey,
			BaseURL:    cfg.Provider.OpenRouterURL,
			HTTPClient: httpclient.New(httpclient.Config{Streaming: true}),
			Title:      "ai-chat",
		})
		return p, true, err
	}
	return nil, false, errors.New("unknown completion provider " + cfg.Server.CompletionProvider)
}

func newEventBus(ctx context.Context) (*eventbus.KafkaEventBus, error) {
	brokers, err := eventbus.Brokers()
	if err != nil {
		return nil, err
	}
	for _, t := range eventbus.AllTopics {
		if err := eventbus.EnsureTopics(ctx, brokers, t, 3); err != nil {
			logger.Log.Errorf("failed to ensure eventbus topics for %s: %v", t.Base(), err)
		}
	}
	return eventbus.NewKafkaEventBus(brokers)
}
