package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func newSQLiteAdapter(t *testing.T) *SQLAdapter {
	t.Helper()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := NewSQLiteAdapter(db)
	_, err = adapter.Migrate(ctx)
	require.NoError(t, err)
	return adapter
}

func seedUser(t *testing.T, a *SQLAdapter, email string) domain.User {
	t.Helper()

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, a.CreateUser(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, a *SQLAdapter, id, price string, stock int) domain.Product {
	t.Helper()

	p := domain.Product{
		ID:          id,
		Name:        "Product " + id,
		Description: "test product",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Category:    "test",
	}
	require.NoError(t, a.UpsertProduct(context.Background(), p))
	return p
}
