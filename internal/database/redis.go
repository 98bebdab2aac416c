package database

import (
	"context"
	"log"

	"rank-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// InitRedis returns a connected client, or nil when no address is
// configured. Callers treat a nil client as "cache disabled".
func InitRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Address == "" {
		log.Println("Redis not configured, role cache is disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: could not reach Redis at %s: %s", cfg.Address, err)
	} else {
		log.Println("Successfully connected to Redis")
	}
	return client
}
