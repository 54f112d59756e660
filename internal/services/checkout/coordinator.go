package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const SuccessMessage = "Payment processed successfully"

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
	// OutcomeIncomplete covers intents that neither failed nor succeeded,
	// e.g. ones waiting on a redirect. Nothing is presented for them.
	OutcomeIncomplete OutcomeKind = "incomplete"
)

type Outcome struct {
	Kind     OutcomeKind
	Message  string
	IntentID string
	Status   string
	Err      error
}

// Attempt tracks one submission. Done is closed once the outcome has been
// recorded and presented.
type Attempt struct {
	done    chan struct{}
	outcome Outcome
}

func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Outcome blocks until the attempt has finished.
func (a *Attempt) Outcome() Outcome {
	<-a.done
	return a.outcome
}

type Options struct {
	Currency string
	// ConfirmTimeout bounds a single confirmation call. Zero means no limit.
	ConfirmTimeout time.Duration
	ReturnURL      string
	Logger         *slog.Logger
}

// Coordinator owns the checkout form and gates payment submission so that
// at most one confirmation is in flight.
type Coordinator struct {
	intents   IntentCreator
	confirmer Confirmer
	presenter Presenter
	opts      Options
	log       *slog.Logger

	mu            sync.Mutex
	state         State
	last          Outcome
	form          Form
	clientSecret  string
	intentAmount  int64
	paymentMethod string
}

func NewCoordinator(form Form, intents IntentCreator, confirmer Confirmer, presenter Presenter, opts Options) *Coordinator {
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Coordinator{
		intents:   intents,
		confirmer: confirmer,
		presenter: presenter,
		opts:      opts,
		log:       l.With("component", "checkout"),
		form:      form,
	}
}

// Init creates the payment intent for the current amount. A failure is
// presented to the user and returned.
func (c *Coordinator) Init(ctx context.Context) error {
	c.mu.Lock()
	amount := c.form.AmountMinor()
	c.mu.Unlock()

	res, err := c.intents.CreatePaymentIntent(ctx, amount, c.opts.Currency)
	if err != nil {
		c.log.Error("creating payment intent", "amount", amount, "currency", c.opts.Currency, "error", err)
		c.presenter.Present(KindError, userMessage(err))
		return err
	}

	c.mu.Lock()
	c.clientSecret = res.ClientSecret
	c.intentAmount = amount
	c.mu.Unlock()

	id, _ := IntentIDFromSecret(res.ClientSecret)
	c.log.Info("payment intent ready", "payment_intent", id, "amount", amount)
	return nil
}

// CollectPayment starts a submission. It refuses with ErrPaymentInFlight
// while another one is running and with a *ValidationError when the form
// is incomplete; a refusal has no side effects.
func (c *Coordinator) CollectPayment(ctx context.Context) (*Attempt, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrPaymentInFlight
	}
	if err := c.form.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.clientSecret != "" && c.form.AmountMinor() != c.intentAmount {
		c.log.Warn("form amount differs from payment intent, charging intent amount",
			"form_amount", c.form.AmountMinor(), "intent_amount", c.intentAmount)
	}
	c.state = StateSubmitting
	req := ConfirmRequest{
		ClientSecret:  c.clientSecret,
		PaymentMethod: c.paymentMethod,
		Billing:       c.form.Billing(),
		ReturnURL:     c.opts.ReturnURL,
	}
	c.mu.Unlock()

	a := &Attempt{done: make(chan struct{})}
	go c.confirm(ctx, req, a)
	return a, nil
}

func (c *Coordinator) confirm(ctx context.Context, req ConfirmRequest, a *Attempt) {
	defer close(a.done)

	var outcome Outcome
	if req.ClientSecret == "" {
		outcome = errorOutcome(ErrIntentNotReady)
	} else {
		if c.opts.ConfirmTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.ConfirmTimeout)
			defer cancel()
		}
		res, err := c.callConfirmer(ctx, req)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			err = &RequestError{Op: "confirm_payment", Message: "Payment confirmation timed out", Err: err}
		case errors.Is(err, context.Canceled):
			err = &RequestError{Op: "confirm_payment", Message: "Payment confirmation was cancelled", Err: err}
		}
		outcome = interpret(res, err)
	}
	if outcome.IntentID == "" {
		outcome.IntentID, _ = IntentIDFromSecret(req.ClientSecret)
	}

	c.mu.Lock()
	c.state = StateCompleted
	c.last = outcome
	c.mu.Unlock()
	a.outcome = outcome

	switch outcome.Kind {
	case OutcomeSuccess:
		c.log.Info("payment succeeded", "payment_intent", outcome.IntentID)
		c.presenter.Present(KindSuccess, outcome.Message)
	case OutcomeError:
		c.log.Warn("payment failed", "payment_intent", outcome.IntentID, "message", outcome.Message, "error", outcome.Err)
		c.presenter.Present(KindError, outcome.Message)
	default:
		c.log.Warn("payment not completed", "payment_intent", outcome.IntentID, "status", outcome.Status)
	}
}

// callConfirmer returns as soon as ctx is done even if the confirmer does
// not honour it, so a hung provider call cannot keep the coordinator busy.
func (c *Coordinator) callConfirmer(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	type reply struct {
		res ConfirmResult
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := c.confirmer.ConfirmPayment(ctx, req)
		ch <- reply{res: res, err: err}
	}()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return ConfirmResult{}, ctx.Err()
	}
}

func interpret(res ConfirmResult, err error) Outcome {
	switch {
	case err != nil:
		return errorOutcome(err)
	case res.Error != nil:
		msg := res.Error.Message
		if msg == "" {
			msg = UnknownErrorMessage
		}
		return Outcome{Kind: OutcomeError, Message: msg, Err: res.Error}
	case res.PaymentIntent != nil && res.PaymentIntent.Status == StatusSucceeded:
		return Outcome{
			Kind:     OutcomeSuccess,
			Message:  SuccessMessage,
			IntentID: res.PaymentIntent.ID,
			Status:   res.PaymentIntent.Status,
		}
	case res.PaymentIntent != nil:
		return Outcome{Kind: OutcomeIncomplete, IntentID: res.PaymentIntent.ID, Status: res.PaymentIntent.Status}
	default:
		return Outcome{Kind: OutcomeIncomplete}
	}
}

func errorOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeError, Message: userMessage(err), Err: err}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Paying reports whether a submission is in flight.
func (c *Coordinator) Paying() bool {
	return c.State() == StateSubmitting
}

// LastOutcome returns the outcome of the latest finished attempt.
func (c *Coordinator) LastOutcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.state == StateCompleted
}

func (c *Coordinator) ClientSecret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientSecret
}

// IntentAmount returns the amount, in minor units, the current payment
// intent was created for. It is 0 before Init succeeds.
func (c *Coordinator) IntentAmount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentAmount
}

func (c *Coordinator) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

func (c *Coordinator) UpdateForm(fn func(*Form)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.form)
}

func (c *Coordinator) Clear() {
	c.UpdateForm((*Form).Clear)
}

// SetPaymentMethod records the payment method produced by the hosted element.
func (c *Coordinator) SetPaymentMethod(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethod = id
}
