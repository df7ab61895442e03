package e2e

import (
	"context"
	"fmt"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbit "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/relay"
	"github.com/ashveil/jobscout/internal/store"
)

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testLogger *zap.Logger
	testStore  *store.Store
	testRelay  *relay.Relay
	testBroker *queue.Broker
)

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("jobscout_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// startRabbitMQ starts a RabbitMQ testcontainer, returns AMQP URL + cleanup func.
func startRabbitMQ(ctx context.Context) (string, func(), error) {
	container, err := tcrabbit.Run(ctx, "rabbitmq:3.12-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start rabbitmq: %w", err)
	}
	url, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("rabbitmq amqp url: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}
