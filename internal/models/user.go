package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/songbook/internal/shared"
)

// User is an account known to the auth layer. Admin mirrors the custom claim of the
// same name.
type User struct {
	UID              string    `json:"uid"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName,omitempty"`
	Admin            bool      `json:"admin"`
	TokensValidAfter time.Time `json:"tokensValidAfter,omitzero"`
	CreatedAt        time.Time `json:"createdAt,omitzero"`
	UpdatedAt        time.Time `json:"updatedAt,omitzero"`
}

// Validate checks the required identity fields.
func (u *User) Validate() error {
	if strings.TrimSpace(u.UID) == "" {
		return fmt.Errorf("%w: uid is required", shared.ErrInvalidInput)
	}
	return nil
}
