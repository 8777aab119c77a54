package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"smartfile-qa/internal/model"
)

// HistoryCache keeps a session's conversation list in redis. A short-lived
// dirty marker is set while a new exchange is being persisted so readers go
// to the database instead of refilling the cache with stale rows.
type HistoryCache struct {
	client         redisv9.Cmdable
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client redisv9.Cmdable, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionKey string) ([]model.Conversation, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(sessionKey)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var conversations []model.Conversation
	if err := json.Unmarshal([]byte(raw), &conversations); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return conversations, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionKey string, conversations []model.Conversation) error {
	payload, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(sessionKey), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionKey string) error {
	if err := c.client.Del(ctx, c.historyKey(sessionKey)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, sessionKey string) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionKey), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, sessionKey string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionKey)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) historyKey(sessionKey string) string {
	return "qa:history:" + sessionKey
}

func (c *HistoryCache) dirtyKey(sessionKey string) string {
	return "qa:history:dirty:" + sessionKey
}
