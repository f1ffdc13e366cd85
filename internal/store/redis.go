package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the login-notification queue and its health probe. Queue
// traffic is one LPUSH per login, so dial and write timeouts stay short; a
// dead redis at startup fails fast instead of stalling recognitions.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to the notification queue backend.
func NewRedis(addr string) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 1 * time.Second,
	})}
}

// Healthy reports whether the queue backend answers a ping.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
