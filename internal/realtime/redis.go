package realtime

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedis creates the shared Redis client.
func NewRedis() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	log.Printf("redis client created (addr: %s)", redisAddr)
	return rdb
}

const presenceTTL = 90 * time.Second

func presenceKey(userID uuid.UUID) string {
	return "presence:" + userID.String()
}

// SetPresence records that a user has an open socket. The key expires on its
// own if the backend dies without a clean disconnect.
func SetPresence(ctx context.Context, rdb *redis.Client, userID uuid.UUID) error {
	return rdb.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func ClearPresence(ctx context.Context, rdb *redis.Client, userID uuid.UUID) error {
	return rdb.Del(ctx, presenceKey(userID)).Err()
}

func IsOnline(ctx context.Context, rdb *redis.Client, userID uuid.UUID) (bool, error) {
	n, err := rdb.Exists(ctx, presenceKey(userID)).Result()
	return n > 0, err
}

// PublishUserNotification pushes a payload onto the user's notification
// channel for listeners outside this process. Best-effort: errors are logged
// by callers, never surfaced to the triggering request.
func PublishUserNotification(ctx context.Context, rdb *redis.Client, userID uuid.UUID, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, "notifications:"+userID.String(), b).Err()
}
