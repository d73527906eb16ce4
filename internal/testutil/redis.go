package testutil

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// testRedisDB is a dedicated database index so test flushes never touch
// development data.
const testRedisDB = 15

// SetupTestRedis creates a Redis client for testing. Tests are skipped when
// Redis is not reachable, unless TEST_REDIS_REQUIRED=true.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr := getEnvOrDefault("TEST_REDIS_ADDR", "localhost:6379")
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   testRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			t.Logf("warning: failed to close redis client after ping error: %v", cerr)
		}
		if requireRedis() {
			t.Fatalf("Redis not available for testing at %s: %v", addr, err)
		}
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test redis db: %v", err)
	}

	return client
}

func requireRedis() bool {
	return getEnvOrDefault("TEST_REDIS_REQUIRED", "") == "true"
}
