package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

type AuthConfig struct {
	SessionTTL time.Duration
	HashCost   int
}

// AuthService signs users in and out. Sessions are opaque tokens held in the
// session store; the user record lives in the user repository.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionStore
	cfg      AuthConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAuthService(users port.UserRepository, sessions port.SessionStore, cfg AuthConfig, log logrus.FieldLogger) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		log:      log.WithField("component", "auth"),
		now:      time.Now,
	}
}

// SignUp registers a user and opens a session for it.
func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (string, *domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}
	if len(password) < minPasswordLength {
		return "", nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("user registered")

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// SignIn verifies credentials and returns a new session token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, *domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve maps a session token to its user.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	userID, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, port.ErrSessionNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.sessions.CreateSession(ctx, token, userID, s.cfg.SessionTTL); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}
