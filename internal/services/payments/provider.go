package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrUnknownWebhookEventType = errors.New("unhandled event type")
	ErrWebhookNotConfigured    = errors.New("webhook secret not configured")
)

type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req PaymentRequest) (string, error)
	HandlePaymentSuccess(payload []byte, sigHeader string) (*PaymentSuccessWebhookResponse, error)
}

type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider sets the global Stripe key. The webhook secret may be
// empty, in which case webhook deliveries are refused.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	if secretKey == "" {
		panic("secretKey required for StripeProvider")
	}
	stripe.Key = secretKey

	return &StripeProvider{
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req PaymentRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.RoutingID != "" {
		params.Metadata = map[string]string{
			"routing_id": req.RoutingID,
		}
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("creating payment intent: %w", err)
	}

	return pi.ClientSecret, nil
}

func (p *StripeProvider) HandlePaymentSuccess(payload []byte, sigHeader string) (*PaymentSuccessWebhookResponse, error) {
	if p.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verifying stripe webhook signature: %w", err)
	}

	if event.Type != "payment_intent.succeeded" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWebhookEventType, event.Type)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("unmarshaling payment_intent: %w", err)
	}

	return &PaymentSuccessWebhookResponse{
		ID:        pi.ID,
		Amount:    pi.Amount,
		Currency:  string(pi.Currency),
		RoutingID: pi.Metadata["routing_id"],
	}, nil
}
