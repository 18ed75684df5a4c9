package main

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type messageQueue interface {
	Dequeue(ctx context.Context) (*azqueue.DequeuedMessage, error)
	Delete(ctx context.Context, id, receipt string) error
}

// runWorker drains the events queue until ctx is cancelled.
func runWorker(ctx context.Context, q messageQueue, proc *processor, idle time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("receive")
			}
			sleep(ctx, idle)
			continue
		}
		if msg == nil {
			sleep(ctx, idle)
			continue
		}
		handleMessage(ctx, q, proc, msg)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handleMessage processes one queue message and reports whether it was
// deleted. Envelopes that cannot be read or events that fail validation stay
// on the queue; events of types nobody projects are dropped.
func handleMessage(ctx context.Context, q messageQueue, proc *processor, msg *azqueue.DequeuedMessage) bool {
	if msg.MessageID == nil || msg.PopReceipt == nil || msg.MessageText == nil {
		log.Error("dequeued message without id, receipt or body")
		return false
	}
	fields := log.Fields{"message": *msg.MessageID}
	if msg.DequeueCount != nil {
		fields["dequeueCount"] = *msg.DequeueCount
	}
	text := *msg.MessageText

	var ev domain.Event
	if err := sonic.ConfigStd.UnmarshalFromString(text, &ev); err != nil {
		log.WithError(err).WithFields(fields).Error("malformed event envelope")
		return false
	}
	fields["event"] = ev.Type

	err := proc.processEvent(ctx, ev, text)
	var malformed *domain.MalformedEventError
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownEventType):
		log.WithFields(fields).Debug("dropping event without projection")
	case errors.As(err, &malformed):
		log.WithError(err).WithFields(fields).Error("malformed event left on queue")
		return false
	default:
		log.WithError(err).WithFields(fields).Error("apply")
		return false
	}
	if err := q.Delete(ctx, *msg.MessageID, *msg.PopReceipt); err != nil {
		log.WithError(err).WithFields(fields).Error("delete")
		return false
	}
	return true
}
