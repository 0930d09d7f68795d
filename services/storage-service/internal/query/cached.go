package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedService wraps Service with a Redis read-through cache keyed on the
// normalized filter. Cache failures are logged and the query falls through to
// the stores, so Redis being down degrades latency, not correctness.
type CachedService struct {
	inner  *Service
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedService(inner *Service, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedService {
	return &CachedService{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedService) Find(ctx context.Context, f Filter) ([]Event, error) {
	key := cacheKey(normalize(f))

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var events []Event
		if err := json.Unmarshal(cached, &events); err == nil {
			return events, nil
		}
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key)
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "events cache read failed", "key", key, "error", err)
	}

	events, err := c.inner.Find(ctx, f)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "events cache write failed", "key", key, "error", err)
		}
	}
	return events, nil
}

func cacheKey(f Filter) string {
	entity, corr := "", ""
	if f.EntityID != nil {
		entity = f.EntityID.String()
	}
	if f.CorrelationID != nil {
		corr = f.CorrelationID.String()
	}
	return fmt.Sprintf("events:%s:%s:%s:%s:%s:%d",
		f.Source, f.EventType, entity, corr, f.TransactionType, f.Limit)
}
