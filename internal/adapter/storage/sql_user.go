package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
)

func (a *SQLAdapter) CreateUser(ctx context.Context, user domain.User) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt.UTC(),
	)
	if a.dialect.isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (a *SQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return a.getUser(ctx, "email", email)
}

func (a *SQLAdapter) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return a.getUser(ctx, "id", id)
}

// column is always a literal from this file.
func (a *SQLAdapter) getUser(ctx context.Context, column, value string) (*domain.User, error) {
	var u domain.User
	err := a.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
