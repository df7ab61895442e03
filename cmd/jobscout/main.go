package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/api"
	"github.com/ashveil/jobscout/internal/auth"
	"github.com/ashveil/jobscout/internal/config"
	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/relay"
	"github.com/ashveil/jobscout/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting jobscout API...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/jobscout.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Task store
	st, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("task store unavailable", zap.Error(err))
	}
	if err := st.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Event relay
	rl, err := relay.New(cfg.Relay.URL, logger)
	if err != nil {
		logger.Fatal("event relay unavailable", zap.Error(err))
	}

	// Task queue broker
	broker, err := queue.NewBroker(cfg.Broker.URL, cfg.Broker.Queue, logger)
	if err != nil {
		logger.Fatal("broker unavailable", zap.Error(err))
	}

	authSvc := auth.NewService(cfg.Auth.Secret, cfg.Auth.Username, cfg.Auth.Password)

	handler := api.NewHandler(st, broker, api.NewRelaySource(rl), authSvc, cfg.Auth.Protect, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8000"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("jobscout listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down jobscout API...")
	srv.Shutdown(context.Background())
	broker.Close()
	rl.Close()
	st.Close()
}
