package database

import (
	"context"
	"fmt"
	"time"

	"langaccessor/logger"

	"github.com/redis/go-redis/v9"
)

// Options selects and configures a backend.
type Options struct {
	Backend string // sqlite, redis or memory

	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the backend named by opts.Backend.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "sqlite", "":
		store, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Store: SQLite database at %s", opts.Path)
		return store, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			logger.Error("Failed to connect to redis at %s: %v", opts.RedisAddr, err)
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.RedisAddr, err)
		}
		logger.Info("Store: Redis at %s (prefix %q)", opts.RedisAddr, opts.RedisPrefix)
		return NewRedisStore(client, opts.RedisPrefix), nil
	case "memory":
		logger.Warn("Store: in-memory backend, settings are lost on exit")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
