package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"
)

// StripeConfirmer confirms payment intents through the Stripe API.
// The global stripe.Key must already be set.
type StripeConfirmer struct{}

func NewStripeConfirmer() *StripeConfirmer {
	return &StripeConfirmer{}
}

func (c *StripeConfirmer) ConfirmPayment(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	id, ok := IntentIDFromSecret(req.ClientSecret)
	if !ok {
		return ConfirmResult{}, &RequestError{Op: "confirm_payment", Message: "Invalid payment session"}
	}

	update := &stripe.PaymentIntentParams{
		Metadata: billingMetadata(req.Billing),
	}
	if req.Billing.Email != "" {
		update.ReceiptEmail = stripe.String(req.Billing.Email)
	}
	update.Context = ctx
	if _, err := paymentintent.Update(id, update); err != nil {
		return mapStripeError(err)
	}

	params := &stripe.PaymentIntentConfirmParams{}
	if req.PaymentMethod != "" {
		pm := &stripe.PaymentMethodParams{BillingDetails: billingDetailsParams(req.Billing)}
		pm.Context = ctx
		if _, err := paymentmethod.Update(req.PaymentMethod, pm); err != nil {
			return mapStripeError(err)
		}
		params.PaymentMethod = stripe.String(req.PaymentMethod)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	params.Context = ctx

	pi, err := paymentintent.Confirm(id, params)
	if err != nil {
		return mapStripeError(err)
	}

	return ConfirmResult{
		PaymentIntent: &PaymentIntentStatus{ID: pi.ID, Status: string(pi.Status)},
	}, nil
}

// IntentIDFromSecret extracts "pi_123" from a "pi_123_secret_abc" client secret.
func IntentIDFromSecret(secret string) (string, bool) {
	id, _, found := strings.Cut(secret, "_secret_")
	if !found || !strings.HasPrefix(id, "pi_") || len(id) <= len("pi_") {
		return "", false
	}
	return id, true
}

// billingDetailsParams leaves empty fields unset so Stripe keeps whatever
// the element already collected.
func billingDetailsParams(b BillingDetails) *stripe.PaymentMethodBillingDetailsParams {
	opt := func(v string) *string {
		if v == "" {
			return nil
		}
		return stripe.String(v)
	}
	return &stripe.PaymentMethodBillingDetailsParams{
		Name:  opt(b.Name),
		Email: opt(b.Email),
		Address: &stripe.AddressParams{
			Line1:      opt(b.Address.Line1),
			PostalCode: opt(b.Address.PostalCode),
			City:       opt(b.Address.City),
		},
	}
}

func billingMetadata(b BillingDetails) map[string]string {
	md := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	set("billing_name", b.Name)
	set("billing_email", b.Email)
	set("billing_line1", b.Address.Line1)
	set("billing_postal_code", b.Address.PostalCode)
	set("billing_city", b.Address.City)
	return md
}

// mapStripeError splits Stripe failures the way the hosted element does:
// errors about the payment itself come back as a result, everything else
// is a failed request.
func mapStripeError(err error) (ConfirmResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return ConfirmResult{}, &RequestError{Op: "confirm_payment", Err: err}
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		return ConfirmResult{Error: &PaymentError{
			Type:    string(stripeErr.Type),
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}}, nil
	}

	return ConfirmResult{}, &RequestError{
		Op:         "confirm_payment",
		StatusCode: stripeErr.HTTPStatusCode,
		Message:    requestMessage(stripeErr),
		Err:        err,
	}
}

func requestMessage(e *stripe.Error) string {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		return "The payment provider is unavailable, please try again later"
	}
	return e.Msg
}
