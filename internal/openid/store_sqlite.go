package openid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteAssociationStore persists associations in SQLite so shared
// associations survive a provider restart. Relying parties cache handles
// for up to the association lifetime; losing them forces every RP back
// through association or dumb-mode verification.
type SQLiteAssociationStore struct {
	db *sql.DB
}

// NewSQLiteAssociationStore opens (creating if needed) the association
// database under dataDir and runs migrations. Scope separates the shared
// and private stores into their own database files.
func NewSQLiteAssociationStore(dataDir, scope string) (*SQLiteAssociationStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "associations-"+scope+".db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteAssociationStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteAssociationStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS openid_associations (
			handle TEXT PRIMARY KEY,
			assoc_type TEXT NOT NULL,
			mac_key BLOB NOT NULL,
			private INTEGER NOT NULL DEFAULT 0,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assoc_expires_at ON openid_associations(expires_at)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteAssociationStore) Save(ctx context.Context, a *Association) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO openid_associations (handle, assoc_type, mac_key, private, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.Handle, a.Type, a.MACKey, boolToInt(a.Private), a.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save association: %w", err)
	}
	return nil
}

func (s *SQLiteAssociationStore) Load(ctx context.Context, handle string) (*Association, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT handle, assoc_type, mac_key, private, expires_at
		 FROM openid_associations WHERE handle = ?`, handle)

	var a Association
	var private int
	var expires string
	if err := row.Scan(&a.Handle, &a.Type, &a.MACKey, &private, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssociationNotFound
		}
		return nil, fmt.Errorf("load association: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}
	a.Private = private != 0
	a.ExpiresAt = t

	if a.Expired() {
		_ = s.Remove(ctx, handle)
		return nil, ErrAssociationNotFound
	}
	return &a, nil
}

func (s *SQLiteAssociationStore) Remove(ctx context.Context, handle string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM openid_associations WHERE handle = ?`, handle); err != nil {
		return fmt.Errorf("remove association: %w", err)
	}
	return nil
}

func (s *SQLiteAssociationStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
