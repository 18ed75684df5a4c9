package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

// Template names understood by the mail renderer.
const (
	TemplateRewardBought = "customer_reward_bought"
	TemplateNewPoints    = "new_points"
)

// Params configures the sender and the program-wide template parameters.
type Params struct {
	FromName           string
	FromAddress        string
	LoyaltyProgramName string
	EcommerceAddress   string
}

// Message is a composed e-mail ready to be rendered and delivered.
type Message struct {
	ID             string         `json:"id"`
	Subject        string         `json:"subject"`
	RecipientEmail string         `json:"recipientEmail"`
	RecipientName  string         `json:"recipientName"`
	SenderEmail    string         `json:"senderEmail"`
	SenderName     string         `json:"senderName"`
	Template       string         `json:"template"`
	Params         map[string]any `json:"params,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Mailer delivers composed messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// EmailProvider composes the customer notifications.
type EmailProvider struct {
	mailer Mailer
	params Params
	newID  func() string
	now    func() time.Time
}

func NewEmailProvider(mailer Mailer, params Params) *EmailProvider {
	return &EmailProvider{mailer: mailer, params: params, newID: uuid.NewString, now: time.Now}
}

// SendMessage addresses a message to email from the configured sender.
func (p *EmailProvider) SendMessage(ctx context.Context, subject, email, template string, params map[string]any) error {
	return p.mailer.Send(ctx, Message{
		ID:             p.newID(),
		Subject:        subject,
		RecipientEmail: email,
		RecipientName:  email,
		SenderEmail:    p.params.FromAddress,
		SenderName:     p.params.FromName,
		Template:       template,
		Params:         params,
		CreatedAt:      p.now().UTC(),
	})
}

// CustomerBoughtCampaign tells the customer about a bought reward. It reports
// false without sending when the customer has no e-mail address.
func (p *EmailProvider) CustomerBoughtCampaign(ctx context.Context, customer domain.CustomerDetails, campaign domain.Campaign, coupon domain.Coupon) (bool, error) {
	if customer.Email == "" {
		log.WithField("customer", customer.CustomerID).Debug("skipping reward e-mail without address")
		return false, nil
	}
	err := p.SendMessage(ctx, fmt.Sprintf("%s - new reward", p.params.LoyaltyProgramName), customer.Email, TemplateRewardBought, map[string]any{
		"program_name":        p.params.LoyaltyProgramName,
		"reward_name":         campaign.Name,
		"reward_code":         coupon.Code,
		"reward_instructions": campaign.UsageInstruction,
		"ecommerce_address":   p.params.EcommerceAddress,
	})
	return err == nil, err
}

// AddPointsToCustomer tells the customer about credited points.
func (p *EmailProvider) AddPointsToCustomer(ctx context.Context, customer domain.CustomerDetails, availableAmount, pointsAdded float64) (bool, error) {
	if customer.Email == "" {
		log.WithField("customer", customer.CustomerID).Debug("skipping points e-mail without address")
		return false, nil
	}
	err := p.SendMessage(ctx, fmt.Sprintf("%s - new points", p.params.LoyaltyProgramName), customer.Email, TemplateNewPoints, map[string]any{
		"program_name":         p.params.LoyaltyProgramName,
		"added_points_amount":  pointsAdded,
		"active_points_amount": availableAmount,
		"ecommerce_address":    p.params.EcommerceAddress,
	})
	return err == nil, err
}
