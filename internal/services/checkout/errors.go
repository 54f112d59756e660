package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const UnknownErrorMessage = "Unknown Error"

var (
	// ErrPaymentInFlight is returned when a submission is already running.
	ErrPaymentInFlight = errors.New("payment already in progress")
	// ErrIntentNotReady is reported when confirmation is attempted before a
	// client secret has been obtained.
	ErrIntentNotReady = &RequestError{Op: "confirm_payment", Message: "Payment is not ready yet, please reload the page"}
)

// FieldErrors maps a form field name to a human readable message.
type FieldErrors map[string]string

// ValidationError means the checkout form is incomplete.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid checkout form: " + strings.Join(keys, ", ")
}

// RequestError is a transport or backend level failure of a remote call.
// Message is safe to show to the user.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) UserMessage() string {
	return e.Message
}

// PaymentError is reported by the provider when the request went through
// but the payment itself was refused.
type PaymentError struct {
	Type    string
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment declined [%s]: %s", e.Code, e.Message)
	}
	return "payment declined: " + e.Message
}

// userMessage picks the message to present for err, falling back to
// UnknownErrorMessage when err carries none.
func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
		return UnknownErrorMessage
	}
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return UnknownErrorMessage
	}
	return err.Error()
}
