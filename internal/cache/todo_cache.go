package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	dom "todoapi/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyList = "todo:list:"

// TodoCache caches each owner's todo list in Redis.
type TodoCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewTodoCache returns a new TodoCache.
func NewTodoCache(rdb redis.UniversalClient, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

// GetList returns the cached list or nil if miss.
func (c *TodoCache) GetList(ctx context.Context, userID string) ([]dom.Todo, error) {
	b, err := c.rdb.Get(ctx, listKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.Todo{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetList stores the list in cache.
func (c *TodoCache) SetList(ctx context.Context, userID string, list []dom.Todo) error {
	if list == nil {
		list = []dom.Todo{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(userID), b, c.ttl).Err()
}

// Invalidate drops the owner's cached list (cache invalidation on write).
func (c *TodoCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, listKey(userID)).Err()
}

func listKey(userID string) string {
	return keyList + userID
}
