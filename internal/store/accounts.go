// ABOUTME: Account persistence for members who may use the assistant
// ABOUTME: Lookup by ID or login identifier (email or nickname) plus creation for bootstrap

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const accountColumns = `id, email, nickname, preferred_name, legacy_name, grade, status, ai_enabled, password_hash, created_at`

// CreateAccount inserts a new account. Generates ID and CreatedAt if not set.
// Returns ErrDuplicateAccount if the email or nickname is already taken.
func (s *SQLiteStore) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid account status %q", a.Status)
	}

	var nickname *string
	if a.Nickname != "" {
		nickname = &a.Nickname
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.Email,
		nickname,
		a.PreferredName,
		a.LegacyName,
		a.Grade,
		string(a.Status),
		a.AIEnabled,
		a.PasswordHash,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Debug("created account", "id", a.ID, "status", a.Status)
	return nil
}

// GetAccount retrieves an account by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByLogin retrieves an account by email (case-insensitive) or exact nickname.
func (s *SQLiteStore) GetAccountByLogin(ctx context.Context, identifier string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE email = ? COLLATE NOCASE OR nickname = ?
		LIMIT 1
	`, identifier, identifier)
	return scanAccount(row)
}

// scanAccount scans a row into an Account.
func scanAccount(scanner interface{ Scan(dest ...any) error }) (*Account, error) {
	var a Account
	var nickname sql.NullString
	var status, createdAt string

	err := scanner.Scan(
		&a.ID,
		&a.Email,
		&nickname,
		&a.PreferredName,
		&a.LegacyName,
		&a.Grade,
		&status,
		&a.AIEnabled,
		&a.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.Nickname = nickname.String
	a.Status = AccountStatus(status)
	a.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &a, nil
}
