package cache

import (
	"context"
	"os"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfile-qa/internal/model"
)

// newRedisHistoryCache needs a live redis at TEST_REDIS_ADDR and skips otherwise.
func newRedisHistoryCache(t *testing.T) *HistoryCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, time.Second)
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newRedisHistoryCache(t)

	_, hit, err := c.GetHistory(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, hit)

	history := []model.Conversation{{ID: 1, Prompt: "what is this?", Answer: "a report", FileName: "report.pdf", HasFile: true}}
	require.NoError(t, c.SetHistory(ctx, "abc123", history))

	got, hit, err := c.GetHistory(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "report.pdf", got[0].FileName)

	require.NoError(t, c.DeleteHistory(ctx, "abc123"))
	_, hit, err = c.GetHistory(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHistoryCacheDirtyMarkerExpires(t *testing.T) {
	ctx := context.Background()
	c := newRedisHistoryCache(t)

	require.NoError(t, c.MarkDirty(ctx, "abc123"))
	dirty, err := c.IsDirty(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, dirty)

	require.Eventually(t, func() bool {
		dirty, err := c.IsDirty(ctx, "abc123")
		return err == nil && !dirty
	}, 3*time.Second, 100*time.Millisecond)
}

func TestHistoryKeysAreNamespaced(t *testing.T) {
	c := NewHistoryCache(nil, 0, 0)
	assert.Equal(t, "qa:history:abc123", c.historyKey("abc123"))
	assert.Equal(t, "qa:history:dirty:abc123", c.dirtyKey("abc123"))
	assert.Equal(t, 60*time.Second, c.historyTTL)
	assert.Equal(t, 5*time.Second, c.dirtyMarkerTTL)
}
