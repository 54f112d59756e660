package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stripe-checkout/internal/services/checkout"
)

type stubIntents struct {
	calls atomic.Int32
}

func (s *stubIntents) CreatePaymentIntent(context.Context, int64, string) (checkout.PaymentIntentResult, error) {
	s.calls.Add(1)
	return checkout.PaymentIntentResult{ClientSecret: "pi_123_secret_abc"}, nil
}

type stubConfirmer struct {
	calls  atomic.Int32
	method atomic.Value
	result checkout.ConfirmResult
}

func (s *stubConfirmer) ConfirmPayment(_ context.Context, req checkout.ConfirmRequest) (checkout.ConfirmResult, error) {
	s.calls.Add(1)
	s.method.Store(req.PaymentMethod)
	return s.result, nil
}

type client struct {
	t       *testing.T
	h       http.Handler
	cookie  *http.Cookie
	intents *stubIntents
	handler *handler
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func newClient(t *testing.T, confirmer checkout.Confirmer) *client {
	t.Helper()
	return newClientWithConfig(t, confirmer, Config{PublicKey: "pk_test_123", Currency: "eur"})
}

func newClientWithConfig(t *testing.T, confirmer checkout.Confirmer, cfg Config) *client {
	t.Helper()
	intents := &stubIntents{}
	factory := func(p checkout.Presenter) *checkout.Coordinator {
		return checkout.NewCoordinator(checkout.DefaultForm(2500), intents, confirmer, p, checkout.Options{
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}
	h := NewHandler(cfg, factory)
	r := chi.NewRouter()
	h.Routes(r)
	return &client{t: t, h: r, intents: intents, handler: h}
}

// fork returns a client for another visitor of the same server.
func (c *client) fork() *client {
	return &client{t: c.t, h: c.h, intents: c.intents, handler: c.handler}
}

func validForm() url.Values {
	return url.Values{
		"name":           {"Ricardo"},
		"email":          {"support@ngx-stripe.dev"},
		"address":        {"Av. Ramon Nieto 313B 2D"},
		"zipcode":        {"36205"},
		"city":           {"Vigo"},
		"amount":         {"2500"},
		"payment_method": {"pm_card_visa"},
	}
}

func succeeded() *stubConfirmer {
	return &stubConfirmer{result: checkout.ConfirmResult{
		PaymentIntent: &checkout.PaymentIntentStatus{ID: "pi_123", Status: checkout.StatusSucceeded},
	}}
}

func TestShowRendersForm(t *testing.T) {
	c := newClient(t, succeeded())

	rec := c.do(http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie)
	body := rec.Body.String()
	assert.Contains(t, body, `value="Ricardo"`)
	assert.Contains(t, body, "Pay 25.00 EUR")
	assert.Contains(t, body, `data-client-secret="pi_123_secret_abc"`)
	assert.NotContains(t, body, "<dialog")
}

func TestSubmitShowsSuccessOnce(t *testing.T) {
	confirmer := succeeded()
	c := newClient(t, confirmer)
	c.do(http.MethodGet, "/", nil)

	rec := c.do(http.MethodPost, "/checkout", validForm())
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.EqualValues(t, 1, confirmer.calls.Load())
	assert.Equal(t, "pm_card_visa", confirmer.method.Load())

	rec = c.do(http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), checkout.SuccessMessage)

	rec = c.do(http.MethodGet, "/", nil)
	assert.NotContains(t, rec.Body.String(), checkout.SuccessMessage)
}

func TestSubmitDeclined(t *testing.T) {
	confirmer := &stubConfirmer{result: checkout.ConfirmResult{Error: &checkout.PaymentError{Message: "Card declined"}}}
	c := newClient(t, confirmer)
	c.do(http.MethodGet, "/", nil)

	c.do(http.MethodPost, "/checkout", validForm())
	rec := c.do(http.MethodGet, "/", nil)

	assert.Contains(t, rec.Body.String(), "Card declined")
	assert.Contains(t, rec.Body.String(), `class="error"`)
}

func TestSubmitInvalidFormIsRefused(t *testing.T) {
	confirmer := succeeded()
	c := newClient(t, confirmer)
	c.do(http.MethodGet, "/", nil)

	form := validForm()
	form.Set("name", "")
	rec := c.do(http.MethodPost, "/checkout", form)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")
	assert.NotContains(t, rec.Body.String(), "<dialog")
	assert.Zero(t, confirmer.calls.Load())
}

func TestClearKeepsAmount(t *testing.T) {
	c := newClient(t, succeeded())
	c.do(http.MethodGet, "/", nil)

	rec := c.do(http.MethodPost, "/checkout/clear", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := c.do(http.MethodGet, "/", nil).Body.String()
	assert.NotContains(t, body, `value="Ricardo"`)
	assert.Contains(t, body, `value="2500"`)
	assert.Contains(t, body, "Pay 25.00 EUR")
}

func TestSessionsAreIsolated(t *testing.T) {
	confirmer := succeeded()
	first := newClient(t, confirmer)
	first.do(http.MethodGet, "/", nil)
	first.do(http.MethodPost, "/checkout/clear", url.Values{})

	second := first.fork()
	body := second.do(http.MethodGet, "/", nil).Body.String()

	assert.Contains(t, body, `value="Ricardo"`)
	assert.NotEqual(t, first.cookie.Value, second.cookie.Value)
}

func TestShowMountsElementWithBillingDetails(t *testing.T) {
	c := newClient(t, succeeded())

	body := c.do(http.MethodGet, "/", nil).Body.String()

	assert.Contains(t, body, `id="payment-error"`)
	assert.Contains(t, body, "billing_details")
	assert.Contains(t, body, `postal_code: value("zipcode")`)
	assert.Less(t, strings.Index(body, "if (error) {"), strings.Index(body, "form.submit()"))
}

func TestSubmitWarnsWhenAmountChanged(t *testing.T) {
	c := newClient(t, succeeded())
	c.do(http.MethodGet, "/", nil)

	form := validForm()
	form.Set("amount", "3000")
	c.do(http.MethodPost, "/checkout", form)

	body := c.do(http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, body, "Pay 30.00 EUR")
	assert.Contains(t, body, "You will be charged 25.00 EUR")
}

func TestPostsWithoutSessionCreateNothing(t *testing.T) {
	confirmer := succeeded()
	c := newClient(t, confirmer)

	rec := c.do(http.MethodPost, "/checkout", validForm())
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = c.do(http.MethodPost, "/checkout/clear", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	assert.Nil(t, c.cookie)
	assert.Zero(t, c.intents.calls.Load())
	assert.Zero(t, confirmer.calls.Load())
	assert.Zero(t, c.handler.sessions.len())
}

func TestIdleSessionsExpire(t *testing.T) {
	c := newClientWithConfig(t, succeeded(), Config{Currency: "eur", SessionTTL: 50 * time.Millisecond})
	c.do(http.MethodGet, "/", nil)
	require.NotNil(t, c.cookie)
	first := c.cookie.Value
	require.Equal(t, 1, c.handler.sessions.len())

	assert.Eventually(t, func() bool {
		return c.handler.sessions.len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	c.do(http.MethodGet, "/", nil)
	assert.NotEqual(t, first, c.cookie.Value)
	assert.EqualValues(t, 2, c.intents.calls.Load())
}

func TestSessionsAreCapped(t *testing.T) {
	c := newClientWithConfig(t, succeeded(), Config{Currency: "eur", MaxSessions: 2})
	c.do(http.MethodGet, "/", nil)
	c.do(http.MethodPost, "/checkout/clear", url.Values{})

	for i := 0; i < 2; i++ {
		c.fork().do(http.MethodGet, "/", nil)
	}
	assert.Equal(t, 2, c.handler.sessions.len())

	body := c.do(http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, body, `value="Ricardo"`, "evicted visitor starts over")
	assert.EqualValues(t, 4, c.intents.calls.Load())
}
