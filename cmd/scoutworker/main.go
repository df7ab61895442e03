package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/config"
	"github.com/ashveil/jobscout/internal/pipeline"
	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/relay"
	"github.com/ashveil/jobscout/internal/store"
	"github.com/ashveil/jobscout/internal/task"
	"github.com/ashveil/jobscout/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting jobscout worker...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/jobscout.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}

	st, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("task store unavailable", zap.Error(err))
	}

	rl, err := relay.New(cfg.Relay.URL, logger)
	if err != nil {
		logger.Fatal("event relay unavailable", zap.Error(err))
	}

	broker, err := queue.NewBroker(cfg.Broker.URL, cfg.Broker.Queue, logger)
	if err != nil {
		logger.Fatal("broker unavailable", zap.Error(err))
	}

	pipeCfg := pipeline.Config{
		Endpoint:     cfg.Pipeline.Endpoint,
		APIKey:       cfg.Pipeline.APIKey,
		Model:        cfg.Pipeline.Model,
		TavilyAPIKey: cfg.Pipeline.TavilyAPIKey,
	}
	factory := func(params task.Params, rep worker.Reporter) worker.Pipeline {
		return pipeline.NewCrew(pipeCfg, params, rep, logger)
	}

	exec := worker.NewExecutor(st, rl, factory, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := broker.Consume(ctx, exec.Execute); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consume loop exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down jobscout worker...")
	cancel()
	<-done
	broker.Close()
	rl.Close()
	st.Close()
}
