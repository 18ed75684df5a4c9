package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

// UpdateBroker fans read-model updates out to the customers' SSE streams.
type UpdateBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewUpdateBroker() *UpdateBroker {
	return &UpdateBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *UpdateBroker) subscribe(customerID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[customerID] == nil {
		b.subs[customerID] = make(map[chan struct{}]struct{})
	}
	b.subs[customerID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *UpdateBroker) unsubscribe(customerID string, ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs[customerID], ch)
	if len(b.subs[customerID]) == 0 {
		delete(b.subs, customerID)
	}
	b.mu.Unlock()
}

// Notify wakes every stream of the customer. Pending wake-ups coalesce.
func (b *UpdateBroker) Notify(customerID string) {
	b.mu.Lock()
	for ch := range b.subs[customerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Listen follows the updates channel until ctx is cancelled, reconnecting
// when the subscription drops.
func (b *UpdateBroker) Listen(ctx context.Context, rc *redis.Client, channel string) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				b.handleUpdate(msg.Payload)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.Error("pubsub channel closed, reconnecting")
		if !waitReconnect(ctx, reconnectDelay) {
			return
		}
	}
}

const reconnectDelay = time.Second

// waitReconnect pauses before the next subscribe attempt and reports false
// when ctx ends first.
func waitReconnect(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *UpdateBroker) handleUpdate(payload string) {
	var ev domain.Event
	if err := sonic.ConfigStd.UnmarshalFromString(payload, &ev); err != nil {
		log.WithError(err).Error("unable to parse update")
		return
	}
	p, err := ev.Decode()
	if err != nil {
		log.WithError(err).WithField("event", ev.Type).Debug("update without typed payload")
		return
	}
	if id := affectedCustomer(p); id != "" {
		b.Notify(id)
	}
}

// affectedCustomer names the customer whose view changes with p, if any.
func affectedCustomer(p domain.Payload) string {
	switch e := p.(type) {
	case domain.CustomerWasRegistered:
		return e.CustomerID
	case domain.CustomerDetailsWereUpdated:
		return e.CustomerID
	case domain.CustomerWasAssignedToTransaction:
		return e.CustomerID
	case domain.CampaignWasBoughtByCustomer:
		return e.CustomerID
	case domain.CampaignUsageWasChanged:
		return e.CustomerID
	case domain.CampaignStatusWasChanged:
		return e.CustomerID
	case domain.AccountWasCreated:
		return e.CustomerID
	case domain.PointsWereAdded:
		return e.CustomerID
	case domain.PointsWereSpent:
		return e.CustomerID
	}
	return ""
}

// streamCustomer pushes the customer read model as server-sent events, once
// on connect and again after every update touching the customer.
func streamCustomer(store Store, broker *UpdateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if !validID(id) {
			return c.String(http.StatusBadRequest, "invalid id")
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		ch := broker.subscribe(id)
		defer broker.unsubscribe(id, ch)
		for {
			customer, err := store.FindCustomer(ctx, id)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			var body any
			if customer != nil {
				body = customer.Serialize()
			}
			data, err := sonic.ConfigStd.Marshal(body)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
				c.Logger().Error(err)
				return err
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			}
		}
	}
}
