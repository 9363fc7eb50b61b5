// Package testenv starts throwaway PostgreSQL and Redis containers for the
// integration tests (build tag "integration").
package testenv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cetsp/diario-scraper/pkg/logger"
)

// ContainerConfig holds configuration for test containers.
type ContainerConfig struct {
	PostgresImage  string
	PostgresDB     string
	PostgresUser   string
	PostgresPass   string
	RedisImage     string
	StartupTimeout time.Duration
}

// DefaultContainerConfig returns a default container configuration.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		PostgresImage:  "postgres:16-alpine",
		PostgresDB:     "diario_oficial",
		PostgresUser:   "testuser",
		PostgresPass:   "testpass",
		RedisImage:     "redis:7-alpine",
		StartupTimeout: 60 * time.Second,
	}
}

// Containers holds running test containers.
type Containers struct {
	Postgres    *postgres.PostgresContainer
	Redis       *redis.RedisContainer
	PostgresDSN string
	RedisHost   string
	RedisPort   int

	config ContainerConfig
	log    *logger.Logger
}

// New prepares containers; nothing runs until a Start method is called.
func New(config ContainerConfig, log *logger.Logger) *Containers {
	if log == nil {
		log = logger.Default()
	}
	return &Containers{config: config, log: log.WithComponent("testcontainers")}
}

// StartPostgres starts a PostgreSQL container.
func (c *Containers) StartPostgres(ctx context.Context) error {
	c.log.Info("starting PostgreSQL container", "image", c.config.PostgresImage)

	container, err := postgres.Run(ctx,
		c.config.PostgresImage,
		postgres.WithDatabase(c.config.PostgresDB),
		postgres.WithUsername(c.config.PostgresUser),
		postgres.WithPassword(c.config.PostgresPass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(c.config.StartupTimeout),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}
	c.Postgres = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get postgres connection string: %w", err)
	}
	c.PostgresDSN = dsn

	c.log.Info("PostgreSQL container started")
	return nil
}

// StartRedis starts a Redis container.
func (c *Containers) StartRedis(ctx context.Context) error {
	c.log.Info("starting Redis container", "image", c.config.RedisImage)

	container, err := redis.Run(ctx,
		c.config.RedisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(c.config.StartupTimeout),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start redis container: %w", err)
	}
	c.Redis = container

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		return fmt.Errorf("failed to get redis port: %w", err)
	}
	c.RedisHost = host
	c.RedisPort = port.Int()

	c.log.Info("Redis container started", "addr", fmt.Sprintf("%s:%d", host, c.RedisPort))
	return nil
}

// Cleanup terminates all running containers.
func (c *Containers) Cleanup(ctx context.Context) error {
	var errs []error

	if c.Postgres != nil {
		if err := c.Postgres.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate postgres: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
