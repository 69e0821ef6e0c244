// Package rediscache caches event funnel configuration in Redis so bulk
// pushes and transitions do not reload the event on every call.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/event-crm/internal/domain"
)

const keyPrefix = "eventcrm:event:"

// EventCache implements event.Cache.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventCache creates a cache whose entries expire after ttl.
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EventCache{client: client, ttl: ttl}
}

func key(orgID, id string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, orgID, id)
}

// Get returns the cached event or nil on a miss.
func (c *EventCache) Get(ctx context.Context, orgID, id string) (*domain.Event, error) {
	data, err := c.client.Get(ctx, key(orgID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached event: %w", err)
	}
	var e domain.Event
	if err := json.Unmarshal(data, &e); err != nil {
		// Drop entries written by an incompatible version.
		c.client.Del(ctx, key(orgID, id))
		return nil, nil
	}
	return &e, nil
}

// Set stores e under its organization and id.
func (c *EventCache) Set(ctx context.Context, e *domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return c.client.Set(ctx, key(e.OrganizationID, e.ID), data, c.ttl).Err()
}

// Invalidate drops the cached event.
func (c *EventCache) Invalidate(ctx context.Context, orgID, id string) error {
	return c.client.Del(ctx, key(orgID, id)).Err()
}
