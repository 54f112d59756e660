package checkout

import "context"

const StatusSucceeded = "succeeded"

type Address struct {
	Line1      string
	PostalCode string
	City       string
}

type BillingDetails struct {
	Name    string
	Email   string
	Address Address
}

// ConfirmRequest is what the hosted payment element needs to finalize a
// payment intent.
type ConfirmRequest struct {
	ClientSecret  string
	PaymentMethod string
	Billing       BillingDetails
	ReturnURL     string
}

type PaymentIntentStatus struct {
	ID     string
	Status string
}

// ConfirmResult carries either a provider error or the resulting intent.
type ConfirmResult struct {
	Error         *PaymentError
	PaymentIntent *PaymentIntentStatus
}

// Confirmer finalizes a payment. A returned error means the call itself
// failed; a refused payment is reported through ConfirmResult.Error.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
}
