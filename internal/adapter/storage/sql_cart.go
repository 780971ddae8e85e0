package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

func (a *SQLAdapter) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity,
			p.id, p.name, p.description, p.price, p.stock, p.image_url, p.category
		FROM cart_items c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var (
			item      domain.CartItem
			pID       sql.NullString
			pName     sql.NullString
			pDesc     sql.NullString
			pImage    sql.NullString
			pCategory sql.NullString
			pPrice    decimal.NullDecimal
			pStock    sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity,
			&pID, &pName, &pDesc, &pPrice, &pStock, &pImage, &pCategory); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if pID.Valid {
			item.Product = &domain.Product{
				ID:          pID.String,
				Name:        pName.String,
				Description: pDesc.String,
				Price:       pPrice.Decimal,
				Stock:       int(pStock.Int64),
				ImageURL:    pImage.String,
				Category:    pCategory.String,
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// AddToCart upserts the (user, product) row and rejects the write when the
// resulting quantity would exceed stock.
func (a *SQLAdapter) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stock, err := productStock(ctx, tx, productID)
	if err != nil {
		return err
	}

	now := a.timestamp()
	if _, err := tx.ExecContext(ctx, a.dialect.upsertCartItem,
		uuid.NewString(), userID, productID, quantity, now, now,
	); err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	var total int
	if err := tx.QueryRowContext(ctx, `
		SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, productID,
	).Scan(&total); err != nil {
		return fmt.Errorf("read cart item: %w", err)
	}
	if total > stock {
		return domain.ErrInsufficientStock
	}

	return tx.Commit()
}

func (a *SQLAdapter) UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT p.stock FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.id = ? AND c.user_id = ?`, itemID, userID,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCartItemNotFound
	}
	if err != nil {
		return fmt.Errorf("query cart item: %w", err)
	}
	if quantity > stock {
		return domain.ErrInsufficientStock
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		quantity, a.timestamp(), itemID, userID,
	); err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}

	return tx.Commit()
}

func (a *SQLAdapter) RemoveFromCart(ctx context.Context, userID, itemID string) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (a *SQLAdapter) ClearCart(ctx context.Context, userID string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func productStock(ctx context.Context, q queryRower, productID string) (int, error) {
	var stock int
	err := q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query product stock: %w", err)
	}
	return stock, nil
}
