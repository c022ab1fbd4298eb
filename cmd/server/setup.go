package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"dramaforge/internal/config"
	pgdb "dramaforge/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	connectAttempts   = 20
	connectRetryDelay = 3 * time.Second
)

// withRetry повторяет connect, пока он не удастся или не кончатся попытки.
func withRetry(ctx context.Context, name string, connect func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = connect(attemptCtx)
		cancel()
		if lastErr == nil {
			zap.L().Info("Connected", zap.String("target", name), zap.Int("attempt", attempt))
			return nil
		}
		zap.L().Warn("Connection failed, retrying...",
			zap.String("target", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	return fmt.Errorf("failed to connect to %s after %d attempts: %w", name, connectAttempts, lastErr)
}

// setupPostgres создает пул соединений PostgreSQL с повторными попытками.
func setupPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dbCfg := pgdb.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: cfg.DBIdleTimeout,
	}
	var pool *pgxpool.Pool
	err := withRetry(ctx, "postgres", func(ctx context.Context) error {
		p, err := pgdb.NewPool(ctx, dbCfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// setupRedis создает клиент Redis с повторными попытками.
func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	var client *redis.Client
	err := withRetry(ctx, "redis", func(ctx context.Context) error {
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return err
		}
		client = c
		return nil
	})
	return client, err
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками.
func connectRabbitMQ(ctx context.Context, rawURL string, logger *zap.Logger) (*amqp091.Connection, error) {
	logger.Info("Attempting to connect to RabbitMQ", zap.String("url", maskURL(rawURL)))
	var conn *amqp091.Connection
	err := withRetry(ctx, "rabbitmq", func(context.Context) error {
		c, err := amqp091.Dial(rawURL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		closeErr := <-conn.NotifyClose(make(chan *amqp091.Error, 1))
		if closeErr != nil {
			logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(closeErr))
		}
	}()
	return conn, nil
}

// maskURL убирает пароль из URL для логирования.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
