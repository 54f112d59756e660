package payments

// PaymentRequest is the body accepted by the create-payment-intent endpoint.
// Amount is in minor currency units.
type PaymentRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	RoutingID      string `json:"-"`
	IdempotencyKey string `json:"-"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PaymentSuccessWebhookResponse struct {
	ID        string
	Amount    int64
	Currency  string
	RoutingID string
}
