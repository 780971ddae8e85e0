package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CreateOrder inserts the order with its lines, takes each line's quantity out
// of product stock and out of the user's cart row. Any line short on stock
// rolls the whole order back. Cart rows added after the snapshot the order was
// built from are left alone.
func (a *SQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, string(order.Status), order.Total,
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, version = version + 1, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			item.Quantity, a.timestamp(), item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, domain.ErrInsufficientStock)
		}

		if err := a.consumeCartItem(ctx, tx, order.UserID, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// consumeCartItem removes the ordered quantity from the user's cart row,
// deleting the row when nothing is left.
func (a *SQLAdapter) consumeCartItem(ctx context.Context, tx *sql.Tx, userID string, item domain.OrderItem) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = ? AND product_id = ? AND quantity <= ?`,
		userID, item.ProductID, item.Quantity,
	); err != nil {
		return fmt.Errorf("consume cart item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = quantity - ?, updated_at = ?
		WHERE user_id = ? AND product_id = ? AND quantity > ?`,
		item.Quantity, a.timestamp(), userID, item.ProductID, item.Quantity,
	); err != nil {
		return fmt.Errorf("consume cart item: %w", err)
	}
	return nil
}

func (a *SQLAdapter) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, status, total, created_at, updated_at
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := []domain.Order{}
	for rows.Next() {
		var (
			o      domain.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	// Lines are loaded after the order cursor is closed; SQLite runs on a
	// single connection.
	for i := range orders {
		items, err := a.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (a *SQLAdapter) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ?
		ORDER BY product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
