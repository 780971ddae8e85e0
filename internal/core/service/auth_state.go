package service

import (
	"context"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
)

// AuthState holds the current user of one session and notifies subscribers
// when it changes. A nil user means an anonymous visitor.
type AuthState struct {
	mu        sync.RWMutex
	user      *domain.User
	nextID    int
	listeners map[int]func(context.Context, *domain.User)
}

func NewAuthState() *AuthState {
	return &AuthState{listeners: make(map[int]func(context.Context, *domain.User))}
}

func (a *AuthState) Current() *domain.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

// Set replaces the current user. Listeners run synchronously, only when the
// identity actually changes.
func (a *AuthState) Set(ctx context.Context, user *domain.User) {
	a.mu.Lock()
	if sameUser(a.user, user) {
		a.user = user
		a.mu.Unlock()
		return
	}
	a.user = user
	listeners := make([]func(context.Context, *domain.User), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, user)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (a *AuthState) Subscribe(fn func(context.Context, *domain.User)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}
