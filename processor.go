package main

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type eventApplier interface {
	Apply(ctx context.Context, ev domain.Event) (domain.Payload, error)
}

type notifier interface {
	Notify(ctx context.Context, p domain.Payload) error
}

type processor struct {
	registry eventApplier
	cache    cacheRefresher
	redis    *redis.Client
	channel  string
	notifier notifier
	dedup    *eventDeduper
	logger   *log.Logger
}

// processEvent projects one envelope, then refreshes the cache, publishes the
// raw envelope on the updates channel and sends notifications. Only a failed
// projection is reported; later steps are logged.
func (p *processor) processEvent(ctx context.Context, ev domain.Event, payload string) (err error) {
	ctx, tr := startProjection(ctx, p.logger, ev)
	outcome := outcomeApplied
	defer func() {
		switch {
		case errors.Is(err, domain.ErrUnknownEventType):
			tr.End(outcomeSkipped, nil)
		case err != nil:
			tr.End(outcomeFailed, err)
		default:
			tr.End(outcome, nil)
		}
	}()

	dedup := p.dedup != nil && ev.ID != ""
	if dedup {
		seen, derr := p.dedup.Seen(ctx, ev.ID)
		switch {
		case derr != nil:
			log.WithError(derr).WithField("event", ev.ID).Warn("event dedup unavailable")
		case seen:
			outcome = outcomeDuplicate
			return nil
		}
	}

	applied, err := p.registry.Apply(ctx, ev)
	if err != nil {
		return err
	}
	if dedup {
		// the row is written, so the mark must survive shutdown cancellation
		if merr := p.dedup.Mark(context.WithoutCancel(ctx), ev.ID); merr != nil {
			log.WithError(merr).WithField("event", ev.ID).Error("failed to record applied event")
		}
	}

	if p.cache != nil {
		p.cache.Refresh(ctx, applied)
	}
	if p.redis != nil && p.channel != "" {
		if perr := p.redis.Publish(ctx, p.channel, payload).Err(); perr != nil {
			log.WithError(perr).Errorf("Unable to publish update for %s to %s", ev.EntityType, p.channel)
		}
	}
	if p.notifier != nil {
		if nerr := p.notifier.Notify(ctx, applied); nerr != nil {
			log.WithError(nerr).WithField("event", ev.Type).Error("failed to send notification")
		}
	}
	return nil
}
