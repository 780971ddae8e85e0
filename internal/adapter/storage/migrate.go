package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Migrate applies the embedded migrations for the adapter's dialect, each at
// most once. It returns the names of the files applied by this call.
func (a *SQLAdapter) Migrate(ctx context.Context) ([]string, error) {
	root := path.Join("migrations", a.dialect.name)

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name       VARCHAR(255) NOT NULL PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`, migrationTable)); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, file := range files {
		done, err := a.isApplied(ctx, file)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", file, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}

		for _, stmt := range splitStatements(extractUpMigration(string(content))) {
			if _, err := a.db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("exec migration %s: %w", file, err)
			}
		}

		if _, err := a.db.ExecContext(ctx,
			"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", file, err)
		}
		applied = append(applied, file)
	}

	return applied, nil
}

func (a *SQLAdapter) isApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+migrationTable+" WHERE name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// splitStatements splits on semicolons that end a line. MySQL rejects
// multi-statement Exec unless the DSN opts in.
func splitStatements(sqlText string) []string {
	var stmts []string
	for _, part := range strings.Split(sqlText, ";\n") {
		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
