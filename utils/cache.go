// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"rwandabill/config"

	"github.com/go-redis/redis/v8"
)

var (
	// SessionCacheClient backs the portal's redis token store.
	SessionCacheClient *redis.Client
	// AuthCacheClient backs the mock backend's refresh-token store.
	AuthCacheClient *redis.Client
)

// NewRedisClient connects to the configured redis server using db and pings it.
func NewRedisClient(db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis (db %d): %w", db, err)
	}
	return client, nil
}

// GetSessionCacheClient returns the redis client for the portal session.
func GetSessionCacheClient() (*redis.Client, error) {
	if SessionCacheClient == nil {
		client, err := NewRedisClient(config.AppConfig.RedisSessionDB)
		if err != nil {
			return nil, err
		}
		SessionCacheClient = client
	}
	return SessionCacheClient, nil
}

// GetAuthCacheClient returns the redis client for refresh tokens.
func GetAuthCacheClient() (*redis.Client, error) {
	if AuthCacheClient == nil {
		client, err := NewRedisClient(config.AppConfig.RedisAuthDB)
		if err != nil {
			return nil, err
		}
		AuthCacheClient = client
	}
	return AuthCacheClient, nil
}
