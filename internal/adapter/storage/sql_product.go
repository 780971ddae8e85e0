package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
)

var ErrOptimisticLock = domain.ErrStockConflict

// likeEscaper makes user input match literally inside a LIKE pattern. '!'
// is used as the escape character because MySQL treats a backslash in a
// string literal as an escape of its own.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

const productColumns = `id, name, description, price, stock, image_url, category, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.Category, &p.CreatedAt)
	return p, err
}

func (a *SQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		where = append(where, "(name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!')")
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (a *SQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(a.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (a *SQLAdapter) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (a *SQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	now := a.timestamp()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := a.db.ExecContext(ctx, a.dialect.upsertProduct,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.Category, created.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (a *SQLAdapter) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := a.db.QueryRowContext(ctx, `
		SELECT id, stock, version, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&inv.ProductID, &inv.Stock, &inv.Version, &inv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &inv, nil
}

func (a *SQLAdapter) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		inv.Stock, a.timestamp(), inv.ProductID, inv.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}
