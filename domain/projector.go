package domain

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// HandlerFunc applies one decoded event to a read model.
type HandlerFunc func(ctx context.Context, p Payload) error

// Projector folds the events it subscribes to into its read model.
type Projector interface {
	Name() string
	Subscriptions() map[string]HandlerFunc
}

func handle[T Payload](fn func(context.Context, T) error) HandlerFunc {
	return func(ctx context.Context, p Payload) error {
		ev, ok := p.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", p, p.EventType())
		}
		return fn(ctx, ev)
	}
}

// MissingRowPolicy decides what happens when an update event finds no row.
type MissingRowPolicy int

const (
	// MissingRowFail returns the error to the consumer.
	MissingRowFail MissingRowPolicy = iota
	// MissingRowWarn logs the error and carries on with the next projector.
	MissingRowWarn
)

// ParseMissingRowPolicy accepts "fail" and "warn".
func ParseMissingRowPolicy(s string) (MissingRowPolicy, error) {
	switch s {
	case "", "fail":
		return MissingRowFail, nil
	case "warn":
		return MissingRowWarn, nil
	}
	return MissingRowFail, fmt.Errorf("unknown missing row policy %q", s)
}

type registration struct {
	projector string
	fn        HandlerFunc
}

// Registry maps event type tags to the handlers subscribed to them. The table
// is built once and handlers run in registration order.
type Registry struct {
	handlers map[string][]registration
	policy   MissingRowPolicy
}

func NewRegistry(policy MissingRowPolicy, projectors ...Projector) *Registry {
	r := &Registry{handlers: map[string][]registration{}, policy: policy}
	for _, p := range projectors {
		for tag, fn := range p.Subscriptions() {
			r.handlers[tag] = append(r.handlers[tag], registration{projector: p.Name(), fn: fn})
		}
	}
	return r
}

// NewDefaultRegistry wires every projector of the service against st.
// Upserting projectors come before the counting ones, so a retried event only
// increments once the upserts it shares a tag with have succeeded.
func NewDefaultRegistry(st ReadModelStore, policy MissingRowPolicy) *Registry {
	return NewRegistry(policy,
		NewTransactionDetailsProjector(st),
		NewCampaignBoughtProjector(st, st, st, st),
		NewCustomerDetailsProjector(st, st),
		NewAccountDetailsProjector(st),
	)
}

// Subscribed reports whether any projector handles the tag.
func (r *Registry) Subscribed(eventType string) bool {
	return len(r.handlers[eventType]) > 0
}

// Apply decodes the envelope and runs it through the subscribed projectors.
// The decoded payload is returned so callers can react to it.
func (r *Registry) Apply(ctx context.Context, ev Event) (Payload, error) {
	p, err := ev.Decode()
	if err != nil {
		return nil, err
	}
	return p, r.ApplyPayload(ctx, p)
}

func (r *Registry) ApplyPayload(ctx context.Context, p Payload) error {
	for _, h := range r.handlers[p.EventType()] {
		if err := h.fn(ctx, p); err != nil {
			if r.policy == MissingRowWarn && IsMissingRow(err) {
				log.WithError(err).WithFields(log.Fields{
					"projector": h.projector,
					"event":     p.EventType(),
					"aggregate": p.AggregateID(),
				}).Warn("skipping event for missing read model row")
				continue
			}
			return fmt.Errorf("%s: %w", h.projector, err)
		}
	}
	return nil
}
