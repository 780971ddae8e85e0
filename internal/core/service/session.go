package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Session is the per-visitor context: one auth state and the cart bound to it.
// The cart follows the auth state for the lifetime of the session.
type Session struct {
	Token string
	Auth  *AuthState
	Cart  *CartManager

	unsubscribe func()
	lastSeen    time.Time
}

func NewSession(token string, carts port.CartRepository, log logrus.FieldLogger) *Session {
	s := &Session{
		Token: token,
		Auth:  NewAuthState(),
		Cart:  NewCartManager(carts, log),
	}
	s.unsubscribe = s.Auth.Subscribe(func(ctx context.Context, user *domain.User) {
		s.Cart.SetUser(ctx, user)
	})
	return s
}

// Start signs user into the session, which loads their cart.
func (s *Session) Start(ctx context.Context, user *domain.User) {
	s.Auth.Set(ctx, user)
}

// Close signs the user out locally and detaches the cart from the auth state.
func (s *Session) Close(ctx context.Context) {
	s.Auth.Set(ctx, nil)
	s.unsubscribe()
}

// SessionRegistry tracks live sessions by token.
type SessionRegistry struct {
	auth  *AuthService
	carts port.CartRepository
	log   logrus.FieldLogger
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(auth *AuthService, carts port.CartRepository, log logrus.FieldLogger) *SessionRegistry {
	return &SessionRegistry{
		auth:     auth,
		carts:    carts,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a freshly authenticated user.
func (r *SessionRegistry) Open(ctx context.Context, token string, user *domain.User) *Session {
	r.mu.Lock()
	s, ok := r.sessions[token]
	if !ok {
		s = NewSession(token, r.carts, r.log)
		r.sessions[token] = s
	}
	s.lastSeen = r.now()
	r.mu.Unlock()

	s.Start(ctx, user)
	return s
}

// Acquire validates token against the session store and returns its live
// session, opening one if this process has not seen the token yet.
func (r *SessionRegistry) Acquire(ctx context.Context, token string) (*Session, error) {
	user, err := r.auth.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			r.Close(ctx, token)
		}
		return nil, err
	}
	return r.Open(ctx, token, user), nil
}

func (r *SessionRegistry) Get(token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Close tears down the session for token, if any.
func (r *SessionRegistry) Close(ctx context.Context, token string) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()

	if ok {
		s.Close(ctx)
	}
}

// Sweep closes sessions idle for longer than idle and returns how many it closed.
func (r *SessionRegistry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for token, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close(ctx)
	}
	return len(stale)
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll tears down every session, used on shutdown.
func (r *SessionRegistry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}
