package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupPrefix = "ev:"

// eventDeduper records applied event ids in Redis so redelivered messages
// are not projected twice while the key lives. Ids are marked only after the
// projection succeeded; an interrupted event stays unmarked and is retried.
type eventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func newEventDeduper(client *redis.Client, ttl time.Duration) *eventDeduper {
	return &eventDeduper{client: client, ttl: ttl}
}

// Seen reports whether the id was already applied.
func (d *eventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupPrefix+eventID).Result()
	return n > 0, err
}

// Mark records the id as applied.
func (d *eventDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupPrefix+eventID, 1, d.ttl).Err()
}
