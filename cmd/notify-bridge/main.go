package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/db"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/services"
	"go.uber.org/zap"
)

// Notify bridge subscribes to escrow events and forwards a notification to
// each party through the notification service.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := services.NewNotifyClient(cfg.NotifyURL, cfg.NotifyTimeout, log)

	err = subscriber.Subscribe(ctx, events.ChannelEscrow, func(event events.Event) {
		log.Info("forwarding event", zap.String("type", event.Type))
		if err := notifier.Forward(ctx, event); err != nil {
			log.Warn("notification forward incomplete", zap.String("type", event.Type), zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("notify_url", cfg.NotifyURL))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
