package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// dialect carries the statements that differ between backends. Everything
// else is portable SQL with ? placeholders.
type dialect struct {
	name              string
	upsertCartItem    string
	upsertProduct     string
	isUniqueViolation func(error) bool
}

var mysqlDialect = dialect{
	name: DialectMySQL,
	upsertCartItem: `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = VALUES(updated_at)`,
	upsertProduct: `
		INSERT INTO products (id, name, description, price, stock, image_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), description = VALUES(description), price = VALUES(price),
			stock = VALUES(stock), image_url = VALUES(image_url), category = VALUES(category),
			version = version + 1, updated_at = VALUES(updated_at)`,
	isUniqueViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

var sqliteDialect = dialect{
	name: DialectSQLite,
	upsertCartItem: `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = cart_items.quantity + excluded.quantity, updated_at = excluded.updated_at`,
	upsertProduct: `
		INSERT INTO products (id, name, description, price, stock, image_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description, price = excluded.price,
			stock = excluded.stock, image_url = excluded.image_url, category = excluded.category,
			version = products.version + 1, updated_at = excluded.updated_at`,
	isUniqueViolation: func(err error) bool {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
		}
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// SQLAdapter implements the cart, product, user and order repositories on a
// relational database. Ownership is enforced in every WHERE clause.
type SQLAdapter struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: mysqlDialect, now: time.Now}
}

func NewSQLiteAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: sqliteDialect, now: time.Now}
}

func (a *SQLAdapter) Dialect() string {
	return a.dialect.name
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// OpenMySQL connects and verifies a MySQL database. dsn must set parseTime=true.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file. SQLite allows
// one writer, so the pool is pinned to a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func (a *SQLAdapter) timestamp() time.Time {
	return a.now().UTC()
}
