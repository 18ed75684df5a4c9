package main

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

const (
	customerID    = "00000000-0000-0000-0000-00000000c001"
	transactionID = "00000000-0000-0000-0000-00000000e001"
	accountID     = "00000000-0000-0000-0000-00000000a001"
)

type fakeApplier struct {
	calls int
	err   error
}

func (f *fakeApplier) Apply(ctx context.Context, ev domain.Event) (domain.Payload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return ev.Decode()
}

type fakeRefresher struct{ refreshed []string }

func (f *fakeRefresher) Refresh(ctx context.Context, p domain.Payload) {
	f.refreshed = append(f.refreshed, p.EventType())
}

type fakeNotifier struct {
	notified []string
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, p domain.Payload) error {
	f.notified = append(f.notified, p.EventType())
	return f.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return m, rc
}

func mustEvent(t *testing.T, id, entityType string, p domain.Payload) domain.Event {
	t.Helper()
	ev, err := domain.NewEvent(id, entityType, p, 1700000000)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return ev
}

func registeredEvent(t *testing.T, id string) domain.Event {
	return mustEvent(t, id, domain.EntityCustomer, domain.NewCustomerWasRegistered(customerID, domain.CustomerData{FirstName: "Joe", Email: "joe@example.com"}))
}

func TestProcessEventPublishesUpdate(t *testing.T) {
	_, rc := newTestRedis(t)
	ctx := context.Background()
	applier := &fakeApplier{}
	refresher := &fakeRefresher{}
	notifier := &fakeNotifier{}
	p := &processor{registry: applier, cache: refresher, redis: rc, channel: "updates", notifier: notifier}

	pubsub := rc.Subscribe(ctx, "updates")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	done := make(chan string, 1)
	go func() {
		msg := <-pubsub.Channel()
		done <- msg.Payload
	}()

	ev := registeredEvent(t, "e1")
	payload := `{"Type":"CustomerWasRegistered"}`
	if err := p.processEvent(ctx, ev, payload); err != nil {
		t.Fatalf("processEvent: %v", err)
	}
	select {
	case pl := <-done:
		if pl != payload {
			t.Fatalf("unexpected payload %s", pl)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message received")
	}
	if applier.calls != 1 {
		t.Fatalf("expected one apply, got %d", applier.calls)
	}
	if len(refresher.refreshed) != 1 || refresher.refreshed[0] != domain.CustomerWasRegisteredType {
		t.Fatalf("unexpected refreshes: %v", refresher.refreshed)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("expected notification, got %v", notifier.notified)
	}
}

func TestProcessEventFailureSkipsSideEffects(t *testing.T) {
	boom := errors.New("table unavailable")
	refresher := &fakeRefresher{}
	notifier := &fakeNotifier{}
	p := &processor{registry: &fakeApplier{err: boom}, cache: refresher, notifier: notifier}
	if err := p.processEvent(context.Background(), registeredEvent(t, "e1"), "{}"); !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}
	if len(refresher.refreshed) != 0 || len(notifier.notified) != 0 {
		t.Fatalf("side effects ran after failed apply")
	}
}

func TestProcessEventNotificationErrorIsNotFatal(t *testing.T) {
	p := &processor{registry: &fakeApplier{}, notifier: &fakeNotifier{err: errors.New("queue down")}}
	if err := p.processEvent(context.Background(), registeredEvent(t, "e1"), "{}"); err != nil {
		t.Fatalf("notification failure must not fail the event: %v", err)
	}
}

func TestProcessEventDedup(t *testing.T) {
	mr, rc := newTestRedis(t)
	ctx := context.Background()
	applier := &fakeApplier{}
	p := &processor{registry: applier, dedup: newEventDeduper(rc, time.Hour)}

	ev := registeredEvent(t, "e1")
	for i := 0; i < 2; i++ {
		if err := p.processEvent(ctx, ev, "{}"); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if applier.calls != 1 {
		t.Fatalf("duplicate event applied, calls=%d", applier.calls)
	}
	if ttl := mr.TTL(dedupPrefix + "e1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected dedup ttl: %v", ttl)
	}

	applier.err = errors.New("boom")
	if err := p.processEvent(ctx, registeredEvent(t, "e2"), "{}"); err == nil {
		t.Fatalf("expected error")
	}
	if mr.Exists(dedupPrefix + "e2") {
		t.Fatalf("failed event must not be recorded as applied")
	}
}

// cancellingApplier mimics a shutdown arriving while the first delivery is
// being projected.
type cancellingApplier struct {
	next     eventApplier
	cancel   context.CancelFunc
	canceled bool
}

func (a *cancellingApplier) Apply(ctx context.Context, ev domain.Event) (domain.Payload, error) {
	if !a.canceled {
		a.canceled = true
		a.cancel()
		return nil, ctx.Err()
	}
	return a.next.Apply(ctx, ev)
}

func TestProcessEventRetriesEventInterruptedByShutdown(t *testing.T) {
	mr, rc := newTestRedis(t)
	st := storage.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	applier := &cancellingApplier{next: domain.NewDefaultRegistry(st, domain.MissingRowFail), cancel: cancel}
	p := &processor{registry: applier, dedup: newEventDeduper(rc, time.Hour)}

	ev := registeredEvent(t, "e1")
	if err := p.processEvent(ctx, ev, "{}"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if mr.Exists(dedupPrefix + "e1") {
		t.Fatalf("interrupted event recorded as applied")
	}

	if err := p.processEvent(context.Background(), ev, "{}"); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	got, err := st.FindCustomer(context.Background(), customerID)
	if err != nil || got == nil {
		t.Fatalf("redelivered event not projected: %#v %v", got, err)
	}
	if !mr.Exists(dedupPrefix + "e1") {
		t.Fatalf("applied event not recorded")
	}
}

func TestProcessEventMarksAppliedEventDespiteCancellation(t *testing.T) {
	mr, rc := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	applier := &cancelAfterApply{cancel: cancel}
	p := &processor{registry: applier, dedup: newEventDeduper(rc, time.Hour)}

	if err := p.processEvent(ctx, registeredEvent(t, "e1"), "{}"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !mr.Exists(dedupPrefix + "e1") {
		t.Fatalf("applied event not recorded after cancellation")
	}
}

type cancelAfterApply struct{ cancel context.CancelFunc }

func (a *cancelAfterApply) Apply(ctx context.Context, ev domain.Event) (domain.Payload, error) {
	defer a.cancel()
	return ev.Decode()
}

func TestProcessEventRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()
	logger, hook := test.NewNullLogger()

	boom := errors.New("boom")
	p := &processor{registry: &fakeApplier{err: boom}, logger: logger}
	_ = p.processEvent(context.Background(), registeredEvent(t, "e1"), "{}")

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != projectionSpanName {
		t.Fatalf("unexpected spans: %#v", spans)
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs["event.type"].AsString() != domain.CustomerWasRegisteredType || attrs["loyalty.projection.outcome"].AsString() != outcomeFailed {
		t.Fatalf("unexpected span attributes: %v", spans[0].Attributes)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != observabilityEvent || entry.Data["outcome"] != outcomeFailed {
		t.Fatalf("unexpected log entry: %#v", entry)
	}
	if _, ok := entry.Data["trace_id"]; !ok {
		t.Fatalf("expected trace id on log entry")
	}
}

func TestProcessEventSkipsUnknownTypeWithoutError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	p := &processor{registry: &fakeApplier{}, logger: logger}
	ev := domain.Event{ID: "e1", EntityID: customerID, EntityType: domain.EntityCustomer, Type: "CustomerWasArchived"}
	if err := p.processEvent(context.Background(), ev, "{}"); !errors.Is(err, domain.ErrUnknownEventType) {
		t.Fatalf("expected unknown event type, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code == codes.Error {
		t.Fatalf("unknown event must not fail the span: %#v", spans)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.DebugLevel || entry.Data["outcome"] != outcomeSkipped {
		t.Fatalf("unexpected log entry: %#v", entry)
	}
}

func TestProcessEventProjectsIntoStore(t *testing.T) {
	_, rc := newTestRedis(t)
	ctx := context.Background()
	st := storage.NewMemory()
	cache := storage.NewCache(st, rc, time.Hour)
	p := &processor{
		registry: domain.NewDefaultRegistry(st, domain.MissingRowFail),
		cache:    newCacheUpdater(st, cache),
		redis:    rc,
		channel:  "updates",
	}
	if err := p.processEvent(ctx, registeredEvent(t, "e1"), "{}"); err != nil {
		t.Fatalf("process: %v", err)
	}
	raw, err := rc.Get(ctx, storage.CustomerCacheKey(customerID)).Result()
	if err != nil || raw == "" {
		t.Fatalf("expected cached customer: %v", err)
	}
	got, err := cache.FindCustomer(ctx, customerID)
	if err != nil || got == nil || got.FirstName != "Joe" {
		t.Fatalf("unexpected customer: %#v %v", got, err)
	}
}
