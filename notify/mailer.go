package notify

import (
	"context"

	"github.com/bytedance/sonic"
)

type enqueuer interface {
	EnqueueEmail(ctx context.Context, payload []byte) error
}

// QueueMailer hands messages to the notifications queue, where the mail
// renderer picks them up.
type QueueMailer struct {
	queue enqueuer
}

func NewQueueMailer(q enqueuer) *QueueMailer {
	return &QueueMailer{queue: q}
}

func (m *QueueMailer) Send(ctx context.Context, msg Message) error {
	data, err := sonic.ConfigStd.Marshal(msg)
	if err != nil {
		return err
	}
	return m.queue.EnqueueEmail(ctx, data)
}
