package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestRedisClient starts an in-memory server that lives for the test.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// seedKey writes raw under key, bypassing the store under test.
func seedKey(t *testing.T, mr *miniredis.Miniredis, key, raw string) {
	t.Helper()
	if err := mr.Set(key, raw); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}
