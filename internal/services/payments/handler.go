package payments

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"golang-stripe-checkout/internal/logging"
)

const (
	RoutingIDHeader      = "X-Routing-Id"
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultCurrency = "eur"
	maxBodyBytes    = int64(65536)
)

type handler struct {
	provider  PaymentProvider
	routingID string
}

// NewHandler builds the payment-intent backend. When routingID is not empty
// requests must carry it in the X-Routing-Id header.
func NewHandler(provider PaymentProvider, routingID string) *handler {
	return &handler{
		provider:  provider,
		routingID: routingID,
	}
}

func (h *handler) Routes(r chi.Router) {
	r.With(h.requireRoutingID).Post("/create-payment-intent", h.CreatePaymentIntent)
	r.Post("/webhook/stripe/payment-success", h.PaymentSuccessWebhook)
}

func (h *handler) requireRoutingID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.routingID != "" && r.Header.Get(RoutingIDHeader) != h.routingID {
			writeError(w, http.StatusForbidden, "Unknown routing id")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	log := logging.FromCtx(r.Context())

	var body PaymentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	body.Currency = strings.ToLower(strings.TrimSpace(body.Currency))
	if body.Currency == "" {
		body.Currency = defaultCurrency
	}
	if !isCurrencyCode(body.Currency) {
		writeError(w, http.StatusBadRequest, "Invalid currency")
		return
	}

	body.RoutingID = r.Header.Get(RoutingIDHeader)
	body.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	clientSecret, err := h.provider.CreatePaymentIntent(r.Context(), body)
	if err != nil {
		log.Error("failed to create payment intent", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create payment intent: "+err.Error())
		return
	}

	log.Info("payment intent created", "amount", body.Amount, "currency", body.Currency)
	writeJSON(w, http.StatusOK, PaymentIntentResponse{ClientSecret: clientSecret})
}

func (h *handler) PaymentSuccessWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromCtx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("reading webhook body", "error", err)
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp, err := h.provider.HandlePaymentSuccess(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, ErrUnknownWebhookEventType):
		// acknowledged so Stripe stops redelivering it
		log.Warn("unhandled webhook event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	case errors.Is(err, ErrWebhookNotConfigured):
		log.Error("webhook received without a configured secret")
		http.Error(w, "Webhook secret not configured", http.StatusInternalServerError)
		return
	case err != nil:
		log.Error("webhook rejected", "error", err)
		http.Error(w, "Signature verification failed", http.StatusBadRequest)
		return
	}

	log.Info("successful payment handled",
		slog.String("payment_intent", resp.ID),
		slog.Int64("amount", resp.Amount),
		slog.String("currency", resp.Currency),
		slog.String("routing_id", resp.RoutingID),
	)
	w.WriteHeader(http.StatusOK)
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
