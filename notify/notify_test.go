package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeQueue struct {
	payloads [][]byte
}

func (q *fakeQueue) EnqueueEmail(ctx context.Context, payload []byte) error {
	q.payloads = append(q.payloads, payload)
	return nil
}

var testParams = Params{
	FromName:           "Loyalty",
	FromAddress:        "noreply@example.com",
	LoyaltyProgramName: "Club",
	EcommerceAddress:   "https://shop.example.com",
}

func newTestProvider(m Mailer) *EmailProvider {
	p := NewEmailProvider(m, testParams)
	p.newID = func() string { return "msg-1" }
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func TestCustomerBoughtCampaignComposesMessage(t *testing.T) {
	m := &recordingMailer{}
	p := newTestProvider(m)
	sent, err := p.CustomerBoughtCampaign(context.Background(),
		domain.CustomerDetails{CustomerID: "c1", Email: "joe@example.com"},
		domain.Campaign{ID: "k1", Name: "Free coffee", UsageInstruction: "Show at the counter"},
		domain.Coupon{Code: "ABC"})
	if err != nil || !sent {
		t.Fatalf("send: %v %v", sent, err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if msg.Subject != "Club - new reward" || msg.Template != TemplateRewardBought || msg.RecipientEmail != "joe@example.com" {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if msg.SenderEmail != "noreply@example.com" || msg.SenderName != "Loyalty" || msg.ID != "msg-1" {
		t.Fatalf("unexpected sender: %#v", msg)
	}
	if msg.Params["reward_code"] != "ABC" || msg.Params["reward_name"] != "Free coffee" || msg.Params["reward_instructions"] != "Show at the counter" {
		t.Fatalf("unexpected params: %#v", msg.Params)
	}
}

func TestProviderSkipsCustomersWithoutEmail(t *testing.T) {
	m := &recordingMailer{}
	p := newTestProvider(m)
	sent, err := p.AddPointsToCustomer(context.Background(), domain.CustomerDetails{CustomerID: "c1"}, 10, 5)
	if err != nil || sent {
		t.Fatalf("expected skip, got %v %v", sent, err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestProviderReturnsMailerError(t *testing.T) {
	boom := errors.New("boom")
	p := newTestProvider(&recordingMailer{err: boom})
	sent, err := p.AddPointsToCustomer(context.Background(), domain.CustomerDetails{Email: "a@b.c"}, 10, 5)
	if !errors.Is(err, boom) || sent {
		t.Fatalf("expected mailer error, got %v %v", sent, err)
	}
}

func TestQueueMailerEncodesMessage(t *testing.T) {
	q := &fakeQueue{}
	p := newTestProvider(NewQueueMailer(q))
	if _, err := p.AddPointsToCustomer(context.Background(), domain.CustomerDetails{Email: "a@b.c"}, 30, 5); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(q.payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(q.payloads))
	}
	var got Message
	if err := sonic.ConfigStd.Unmarshal(q.payloads[0], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Template != TemplateNewPoints || got.Subject != "Club - new points" {
		t.Fatalf("unexpected message: %#v", got)
	}
	if got.Params["added_points_amount"] != float64(5) || got.Params["active_points_amount"] != float64(30) {
		t.Fatalf("unexpected params: %#v", got.Params)
	}
}

func TestDispatcherCampaignBought(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	if err := st.UpsertCustomer(ctx, domain.CustomerDetails{CustomerID: "c1", Email: "joe@example.com"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := st.UpsertCampaign(ctx, domain.Campaign{ID: "k1", Name: "Catalog name", UsageInstruction: "use it"}); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	m := &recordingMailer{}
	d := NewDispatcher(newTestProvider(m), st)

	ev := domain.NewCampaignWasBoughtByCustomer("c1", "k1", "Event name", 10, domain.Coupon{Code: "X"}, domain.RewardValueCode)
	if err := d.Notify(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].Params["reward_name"] != "Catalog name" {
		t.Fatalf("unexpected messages: %#v", m.sent)
	}

	// unknown campaign falls back to the event's name
	ev = domain.NewCampaignWasBoughtByCustomer("c1", "k2", "Event name", 10, domain.Coupon{Code: "Y"}, domain.RewardValueCode)
	if err := d.Notify(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 2 || m.sent[1].Params["reward_name"] != "Event name" {
		t.Fatalf("unexpected messages: %#v", m.sent)
	}
}

func TestDispatcherPointsAdded(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	_ = st.UpsertCustomer(ctx, domain.CustomerDetails{CustomerID: "c1", Email: "joe@example.com"})
	_ = st.UpsertAccount(ctx, domain.AccountDetails{AccountID: "a1", CustomerID: "c1", AvailableAmount: 42})
	m := &recordingMailer{}
	d := NewDispatcher(newTestProvider(m), st)

	ev := domain.PointsWereAdded{PointsTransfer: domain.PointsTransfer{AccountID: "a1", CustomerID: "c1", TransferID: "p1", Points: 7}}
	if err := d.Notify(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].Params["active_points_amount"] != float64(42) || m.sent[0].Params["added_points_amount"] != float64(7) {
		t.Fatalf("unexpected messages: %#v", m.sent)
	}
}

func TestDispatcherIgnoresOtherEventsAndUnknownCustomers(t *testing.T) {
	ctx := context.Background()
	m := &recordingMailer{}
	d := NewDispatcher(newTestProvider(m), storage.NewMemory())
	if err := d.Notify(ctx, domain.NewCustomerWasRegistered("c1", domain.CustomerData{Email: "a@b.c"})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	ev := domain.PointsWereAdded{PointsTransfer: domain.PointsTransfer{AccountID: "a1", CustomerID: "nobody", Points: 1}}
	if err := d.Notify(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("expected no messages, got %#v", m.sent)
	}
}
