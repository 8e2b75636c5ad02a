package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// UserRepository persists accounts and their admin claim.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser inserts a user or refreshes its email and display name. Claims and
// revocation state are never overwritten here.
func (r *UserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (uid, email, display_name, admin, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, user.UID, user.Email, user.DisplayName, now, now); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by UID.
func (r *UserRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	query := `
		SELECT uid, email, display_name, admin, tokens_valid_after, created_at, updated_at
		FROM users
		WHERE uid = ?
	`
	var (
		u          models.User
		validAfter sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&u.UID, &u.Email, &u.DisplayName, &u.Admin, &validAfter, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if validAfter.Valid {
		u.TokensValidAfter = validAfter.Time
	}
	return &u, nil
}

// SetAdmin sets the admin custom claim.
func (r *UserRepository) SetAdmin(ctx context.Context, uid string, admin bool) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET admin = ?, updated_at = ? WHERE uid = ?", admin, time.Now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("failed to set admin claim: %w", err)
	}
	return expectRows(result, "user", uid)
}

// RevokeTokens invalidates sessions issued before at.
func (r *UserRepository) RevokeTokens(ctx context.Context, uid string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET tokens_valid_after = ?, updated_at = ? WHERE uid = ?", at.UTC(), time.Now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return expectRows(result, "user", uid)
}
