package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

type userRecord struct {
	ID               sdbmodels.RecordID `cbor:"id"`
	Email            string             `cbor:"email"`
	DisplayName      string             `cbor:"display_name"`
	Admin            bool               `cbor:"admin"`
	TokensValidAfter *time.Time         `cbor:"tokens_valid_after"`
	CreatedAt        time.Time          `cbor:"created_at"`
	UpdatedAt        time.Time          `cbor:"updated_at"`
}

func userRID(uid string) sdbmodels.RecordID {
	return sdbmodels.NewRecordID(usersTable, uid)
}

// UpsertUser stores identity fields, keeping admin and revocation state.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPSERT $rid SET
			email = $email,
			display_name = $name,
			admin = admin ?? false,
			created_at = created_at ?? time::now(),
			updated_at = time::now()
	`
	params := map[string]any{"rid": userRID(user.UID), "email": user.Email, "name": user.DisplayName}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by UID.
func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	res, err := surrealdb.Query[[]userRecord](ctx, s.db, "SELECT * FROM $rid", map[string]any{"rid": userRID(uid)})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	records, _ := first(res)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, uid)
	}

	r := records[0]
	u := &models.User{
		UID:         recordKey(r.ID),
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Admin:       r.Admin,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.TokensValidAfter != nil {
		u.TokensValidAfter = *r.TokensValidAfter
	}
	return u, nil
}

func (s *Store) mutateUser(ctx context.Context, uid, set string, params map[string]any) error {
	query := `
		BEGIN TRANSACTION;
		IF (SELECT VALUE id FROM ONLY $rid) = NONE { THROW "` + notFoundMarker + `" };
		UPDATE $rid SET ` + set + `, updated_at = time::now();
		COMMIT TRANSACTION;
	`
	params["rid"] = userRID(uid)
	_, err := surrealdb.Query[any](ctx, s.db, query, params)
	if err := mapError(err, "user", uid); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// SetAdmin sets the admin custom claim.
func (s *Store) SetAdmin(ctx context.Context, uid string, admin bool) error {
	return s.mutateUser(ctx, uid, "admin = $admin", map[string]any{"admin": admin})
}

// RevokeTokens invalidates sessions issued before at.
func (s *Store) RevokeTokens(ctx context.Context, uid string, at time.Time) error {
	return s.mutateUser(ctx, uid, "tokens_valid_after = $at", map[string]any{"at": at.UTC()})
}
