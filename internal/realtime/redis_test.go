package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestPresenceLifecycle(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()
	ctx := context.Background()
	userID := uuid.New()

	online, err := IsOnline(ctx, rdb, userID)
	if err != nil {
		t.Fatal(err)
	}
	if online {
		t.Fatal("expected offline before SetPresence")
	}

	if err := SetPresence(ctx, rdb, userID); err != nil {
		t.Fatal(err)
	}
	online, err = IsOnline(ctx, rdb, userID)
	if err != nil {
		t.Fatal(err)
	}
	if !online {
		t.Fatal("expected online after SetPresence")
	}

	if err := ClearPresence(ctx, rdb, userID); err != nil {
		t.Fatal(err)
	}
	online, _ = IsOnline(ctx, rdb, userID)
	if online {
		t.Fatal("expected offline after ClearPresence")
	}
}

func TestPublishUserNotification(t *testing.T) {
	rdb := setupTestRedis(t)
	defer rdb.Close()
	ctx := context.Background()
	userID := uuid.New()

	sub := rdb.Subscribe(ctx, "notifications:"+userID.String())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	payload := map[string]string{"type": "chat_message", "text": "hello"}
	if err := PublishUserNotification(ctx, rdb, userID, payload); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-sub.Channel():
		var got map[string]string
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatal(err)
		}
		if got["type"] != "chat_message" || got["text"] != "hello" {
			t.Errorf("unexpected payload %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}
}
