package docstore

import (
	"context"
	"fmt"
	"time"

	"ntes/internal/apperr"
)

// SettingLogoURL holds the public URL of the site logo.
const SettingLogoURL = "logoUrl"

// GetSetting returns the value stored under key, or CodeNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	var v string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if noRows(err) {
		return "", notFound("setting", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

// PutSetting upserts key.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if key == "" {
		return apperr.New(apperr.CodeInvalidArgument, "setting key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// User is an admin account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts u. A duplicate email yields CodeAuthEmailInUse.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	if err := s.ready(ctx); err != nil {
		return User{}, err
	}
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return User{}, apperr.New(apperr.CodeAuthEmailInUse, "email already registered")
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks up an account, or CodeAuthUserNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := s.ready(ctx); err != nil {
		return User{}, err
	}
	var u User
	var created string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if noRows(err) {
		return User{}, apperr.New(apperr.CodeAuthUserNotFound, "no user with that email")
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}
