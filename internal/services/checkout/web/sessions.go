package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"golang-stripe-checkout/internal/logging"
	"golang-stripe-checkout/internal/services/checkout"
)

const (
	sessionCookie = "checkout_session"

	defaultSessionTTL  = 30 * time.Minute
	defaultMaxSessions = 10000
)

// CoordinatorFactory builds a coordinator for a new visitor. Outcomes must
// be reported to presenter.
type CoordinatorFactory func(presenter checkout.Presenter) *checkout.Coordinator

type session struct {
	coord   *checkout.Coordinator
	dialogs *checkout.Dialogs
}

// sessions keeps one checkout per visitor. A session expires after ttl
// without requests; past max sessions the least recently used one goes.
type sessions struct {
	factory CoordinatorFactory
	secure  bool
	byID    *expirable.LRU[string, *session]
}

func newSessions(factory CoordinatorFactory, secure bool, ttl time.Duration, maxSessions int) *sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &sessions{
		factory: factory,
		secure:  secure,
		byID:    expirable.NewLRU[string, *session](maxSessions, nil, ttl),
	}
}

// lookup returns the visitor's live session and renews its expiry.
func (s *sessions) lookup(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	sess, ok := s.byID.Get(c.Value)
	if !ok {
		return nil, false
	}
	s.byID.Add(c.Value, sess)
	return sess, true
}

// start creates a session and its payment intent. Only page loads start
// sessions, so form posts from unknown visitors never create intents.
func (s *sessions) start(w http.ResponseWriter, r *http.Request) *session {
	id := uuid.NewString()
	dialogs := &checkout.Dialogs{}
	sess := &session{coord: s.factory(dialogs), dialogs: dialogs}
	s.byID.Add(id, sess)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	// errors are already presented to the visitor
	if err := sess.coord.Init(r.Context()); err != nil {
		logging.FromCtx(r.Context()).Warn("checkout started without payment intent", "error", err)
	}
	return sess
}

func (s *sessions) len() int {
	return s.byID.Len()
}
