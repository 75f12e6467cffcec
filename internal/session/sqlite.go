package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Credential keys stored in the credentials table.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUsername     = "username"
	keyEmail        = "email"
	keyAvatar       = "avatar"
)

// SQLiteStorage persists session credentials across restarts.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the stored credentials. The boolean is false when no
// session has been persisted.
func (s *SQLiteStorage) Load(ctx context.Context) (Credentials, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	var creds Credentials
	found := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Credentials{}, false, fmt.Errorf("scan credential row: %w", err)
		}
		switch key {
		case keyAccessToken:
			creds.AccessToken = value
		case keyRefreshToken:
			creds.RefreshToken = value
		case keyUsername:
			creds.Username = value
		case keyEmail:
			creds.Email = value
		case keyAvatar:
			creds.Avatar = value
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return Credentials{}, false, fmt.Errorf("iterate credential rows: %w", err)
	}

	// A row set without tokens is a half-written session; treat it as absent.
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return Credentials{}, false, nil
	}

	return creds, found, nil
}

// Save replaces the stored credentials in a single transaction.
func (s *SQLiteStorage) Save(ctx context.Context, creds Credentials) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	pairs := map[string]string{
		keyAccessToken:  creds.AccessToken,
		keyRefreshToken: creds.RefreshToken,
		keyUsername:     creds.Username,
		keyEmail:        creds.Email,
		keyAvatar:       creds.Avatar,
	}
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, value); err != nil {
			return fmt.Errorf("save credential %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// UpdateAccessToken replaces only the access token, leaving the rest of
// the session untouched.
func (s *SQLiteStorage) UpdateAccessToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE key = ?`,
		token, keyAccessToken)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access token rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update access token: no stored session")
	}
	return nil
}

// Clear removes every stored credential.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
