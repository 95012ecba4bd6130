package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Codeblockz/localwork-hero/pkg/api"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists grants in a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the grants database at dbPath.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writes and keeps ":memory:" databases
	// from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	if s.dbPath != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS folder_permissions (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			granted_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_folder_permissions_path ON folder_permissions(path);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute init query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add inserts a grant
func (s *SQLiteStore) Add(ctx context.Context, perm api.FolderPermission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folder_permissions (id, path, granted_at) VALUES (?, ?, ?)`,
		perm.ID, perm.Path, perm.GrantedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// Remove deletes a grant by id
func (s *SQLiteStore) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folder_permissions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// List returns grants in the order they were made
func (s *SQLiteStore) List(ctx context.Context) ([]api.FolderPermission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, granted_at FROM folder_permissions ORDER BY granted_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	perms := []api.FolderPermission{}
	for rows.Next() {
		var p api.FolderPermission
		var grantedAt int64
		if err := rows.Scan(&p.ID, &p.Path, &grantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		p.GrantedAt = time.Unix(0, grantedAt).UTC()
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
