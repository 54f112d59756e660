// Package web serves the checkout page and routes form actions to a
// per-visitor checkout.Coordinator.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"golang-stripe-checkout/internal/logging"
	"golang-stripe-checkout/internal/services/checkout"
)

//go:embed templates/*.html
var templatesFS embed.FS

var page = template.Must(template.New("checkout.html").Funcs(template.FuncMap{
	"field": newField,
}).ParseFS(templatesFS, "templates/checkout.html"))

type field struct {
	Name  string
	Label string
	Value string
	Error string
}

func newField(name, label, value string, errs checkout.FieldErrors) field {
	return field{Name: name, Label: label, Value: value, Error: errs[name]}
}

type pageData struct {
	Form          checkout.Form
	Errors        checkout.FieldErrors
	DisplayAmount float64
	// ChargeAmount is set when the intent charges something other than
	// DisplayAmount.
	ChargeAmount float64
	Currency     string
	PublicKey    string
	ClientSecret string
	Paying       bool
	Dialogs      []checkout.Dialog
}

type Config struct {
	PublicKey   string
	Currency    string
	Secure      bool
	SessionTTL  time.Duration
	MaxSessions int
}

type handler struct {
	cfg      Config
	sessions *sessions
}

func NewHandler(cfg Config, factory CoordinatorFactory) *handler {
	return &handler{
		cfg:      cfg,
		sessions: newSessions(factory, cfg.Secure, cfg.SessionTTL, cfg.MaxSessions),
	}
}

func (h *handler) Routes(r chi.Router) {
	r.Get("/", h.Show)
	r.Post("/checkout", h.Submit)
	r.Post("/checkout/clear", h.Clear)
}

func (h *handler) Show(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.lookup(r)
	if !ok {
		s = h.sessions.start(w, r)
	}
	h.render(w, r, http.StatusOK, s, nil)
}

func (h *handler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromCtx(r.Context())
	s, ok := h.sessions.lookup(r)
	if !ok {
		log.Info("submission without live session")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	s.coord.UpdateForm(func(f *checkout.Form) {
		f.Name = strings.TrimSpace(r.PostForm.Get("name"))
		f.Email = strings.TrimSpace(r.PostForm.Get("email"))
		f.Address = strings.TrimSpace(r.PostForm.Get("address"))
		f.Zipcode = strings.TrimSpace(r.PostForm.Get("zipcode"))
		f.City = strings.TrimSpace(r.PostForm.Get("city"))
		f.Amount = strings.TrimSpace(r.PostForm.Get("amount"))
	})
	s.coord.SetPaymentMethod(r.PostForm.Get("payment_method"))

	// the confirmation must outlive a client that disconnects mid-payment
	attempt, err := s.coord.CollectPayment(context.WithoutCancel(r.Context()))
	var ve *checkout.ValidationError
	switch {
	case errors.As(err, &ve):
		h.render(w, r, http.StatusUnprocessableEntity, s, ve.Fields)
		return
	case errors.Is(err, checkout.ErrPaymentInFlight):
		log.Info("submission ignored, payment in progress")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		log.Error("collecting payment", "error", err)
		http.Error(w, "Payment could not be started", http.StatusInternalServerError)
		return
	}

	select {
	case <-attempt.Done():
	case <-r.Context().Done():
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handler) Clear(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.sessions.lookup(r); ok {
		s.coord.Clear()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, s *session, errs checkout.FieldErrors) {
	form := s.coord.Form()
	var charge float64
	if s.coord.ClientSecret() != "" && s.coord.IntentAmount() != form.AmountMinor() {
		charge = float64(s.coord.IntentAmount()) / 100
	}
	data := pageData{
		Form:          form,
		Errors:        errs,
		DisplayAmount: form.DisplayAmount(),
		ChargeAmount:  charge,
		Currency:      strings.ToUpper(h.cfg.Currency),
		PublicKey:     h.cfg.PublicKey,
		ClientSecret:  s.coord.ClientSecret(),
		Paying:        s.coord.Paying(),
		Dialogs:       s.dialogs.Take(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		logging.FromCtx(r.Context()).Error("rendering checkout page", "error", err)
	}
}
