package checkout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"golang-stripe-checkout/internal/services/payments"
)

const createIntentOp = "create_payment_intent"

type PaymentIntentResult struct {
	ClientSecret string
}

// IntentCreator asks the backend for a new payment intent.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (PaymentIntentResult, error)
}

type IntentClientConfig struct {
	BaseURL   string
	RoutingID string
	Timeout   time.Duration
	// Retries is the number of extra attempts on transport errors and 5xx
	// responses. Zero disables retrying.
	Retries int
}

// IntentClient talks to the create-payment-intent endpoint over HTTP.
type IntentClient struct {
	client *resty.Client
}

func NewIntentClient(cfg IntentClientConfig) *IntentClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.RoutingID != "" {
		c.SetHeader(payments.RoutingIDHeader, cfg.RoutingID)
	}
	return &IntentClient{client: c}
}

type intentResponse struct {
	ClientSecret       string `json:"clientSecret"`
	ClientSecretLegacy string `json:"client_secret"`
}

func (c *IntentClient) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (PaymentIntentResult, error) {
	if amount <= 0 {
		return PaymentIntentResult{}, &RequestError{Op: createIntentOp, Message: "Invalid amount"}
	}
	if len(currency) != 3 {
		return PaymentIntentResult{}, &RequestError{Op: createIntentOp, Message: "Invalid currency"}
	}

	var (
		out     intentResponse
		errBody payments.ErrorResponse
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(payments.IdempotencyKeyHeader, uuid.NewString()).
		SetBody(payments.PaymentRequest{Amount: amount, Currency: currency}).
		SetResult(&out).
		SetError(&errBody).
		Post("/create-payment-intent")
	if err != nil {
		return PaymentIntentResult{}, &RequestError{
			Op:      createIntentOp,
			Message: "Could not reach the payment service",
			Err:     err,
		}
	}

	if resp.IsError() {
		msg := errBody.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return PaymentIntentResult{}, &RequestError{
			Op:         createIntentOp,
			StatusCode: resp.StatusCode(),
			Message:    msg,
		}
	}

	secret := out.ClientSecret
	if secret == "" {
		secret = out.ClientSecretLegacy
	}
	if secret == "" {
		return PaymentIntentResult{}, &RequestError{
			Op:         createIntentOp,
			StatusCode: resp.StatusCode(),
			Message:    "Payment service returned no client secret",
		}
	}

	return PaymentIntentResult{ClientSecret: secret}, nil
}
