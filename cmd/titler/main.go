package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat/cmd/internal/storage"
	"ai-chat/config"
	"ai-chat/eventbus"
	"ai-chat/logger"
	"ai-chat/quota"
	"ai-chat/titler"
)

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brokers, err := eventbus.Brokers()
	if err != nil {
		logger.Log.Errorf("%v", err)
		os.Exit(1)
	}
	groupID, err := eventbus.GroupID()
	if err != nil {
		logger.Log.Errorf("%v", err)
		os.Exit(1)
	}

	stores, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Errorf("failed to open storage: %v", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stores.Close(closeCtx)
	}()

	generator, err := titler.NewGeminiGenerator(ctx, cfg.Provider.GeminiAPIKey, cfg.Titler.Model)
	if err != nil {
		logger.Log.Errorf("failed to create title generator: %v", err)
		os.Exit(1)
	}

	if err := eventbus.EnsureTopics(ctx, brokers, eventbus.TopicChatEvents, 3); err != nil {
		logger.Log.Errorf("failed to ensure eventbus topics: %v", err)
	}
	bus, err := eventbus.NewKafkaEventBus(brokers)
	if err != nil {
		logger.Log.Errorf("failed to create event bus: %v", err)
		os.Exit(1)
	}
	defer bus.Close()

	svc := titler.NewService(stores.Chats, stores.Messages, generator, quota.NewFromConfig(cfg.Titler), bus)

	logger.InfoWithFields("starting titler", logger.Fields{
		"group_id": groupID,
		"model":    cfg.Titler.Model,
		"storage":  stores.Driver,
	})

	if err := bus.Subscribe(ctx, groupID+"-titler", eventbus.TopicChatEvents, svc.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Errorf("eventbus subscribe error: %v", err)
	}
	logger.Log.Info("titler stopped")
}
