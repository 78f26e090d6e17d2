package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poemgrid/internal/admin"
	"poemgrid/internal/api"
	"poemgrid/internal/config"
	"poemgrid/internal/hub"
	"poemgrid/internal/presence"
	"poemgrid/internal/routers"
	"poemgrid/internal/store"
	"poemgrid/internal/utils"
)

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg := config.Load()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	roomStore, err := store.NewStore(store.NewRedisPersister(rdb), logger)
	if err != nil {
		logger.Fatal("failed to load room store", zap.Error(err))
	}

	tracker := presence.NewTracker()
	broadcastHub := hub.NewHub()
	aggregator := admin.NewAggregator(roomStore, tracker, cfg.AdminUsername)
	handlers := api.NewHandlers(logger, roomStore, tracker, broadcastHub, aggregator, cfg.JWTSecret)

	sweeper := store.NewSweeper(roomStore, cfg.RoomTTL, cfg.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("failed to start sweeper", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routers.New(handlers),
	}

	go func() {
		logger.Info("poemgrid listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := roomStore.Close(); err != nil {
		logger.Error("final persist failed", zap.Error(err))
	}
	_ = rdb.Close()
}
