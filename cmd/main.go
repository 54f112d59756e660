package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"golang-stripe-checkout/config"
	"golang-stripe-checkout/internal/logging"
	"golang-stripe-checkout/internal/services/checkout"
	"golang-stripe-checkout/internal/services/checkout/web"
	"golang-stripe-checkout/internal/services/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.File)
	slog.SetDefault(logger)

	stripeProvider := payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	paymentsHandler := payments.NewHandler(stripeProvider, cfg.Backend.RoutingID)

	intents := checkout.NewIntentClient(checkout.IntentClientConfig{
		BaseURL:   cfg.Backend.BaseURL,
		RoutingID: cfg.Backend.RoutingID,
		Timeout:   cfg.Backend.Timeout,
		Retries:   cfg.Backend.Retries,
	})
	confirmer := checkout.NewStripeConfirmer()
	newCoordinator := func(p checkout.Presenter) *checkout.Coordinator {
		return checkout.NewCoordinator(checkout.DefaultForm(cfg.Checkout.Amount), intents, confirmer, p, checkout.Options{
			Currency:       cfg.Checkout.Currency,
			ConfirmTimeout: cfg.Checkout.ConfirmTimeout,
			ReturnURL:      cfg.Checkout.ReturnURL,
			Logger:         logger,
		})
	}
	checkoutHandler := web.NewHandler(web.Config{
		PublicKey:   cfg.Stripe.PublicKey,
		Currency:    cfg.Checkout.Currency,
		Secure:      strings.HasPrefix(cfg.Checkout.ReturnURL, "https://"),
		SessionTTL:  cfg.Checkout.SessionTTL,
		MaxSessions: cfg.Checkout.MaxSessions,
	}, newCoordinator)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)

	paymentsHandler.Routes(r)
	checkoutHandler.Routes(r)

	srv := &http.Server{
		Addr:              cfg.Http.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info(fmt.Sprintf("Server running on %s", cfg.Http.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Checkout.ConfirmTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down server", "error", err)
	}
}
