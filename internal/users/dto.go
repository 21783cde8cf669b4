package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	AvatarRef    *string            `json:"avatar_ref,omitempty"`
	Provider     enums.AuthProvider `json:"provider"`
	LastSignInAt *time.Time         `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new identity.
type CreateUserDTO struct {
	Email           string
	DisplayName     string
	AvatarRef       *string
	Provider        enums.AuthProvider
	ProviderSubject *string
	PasswordHash    *string
	SignedInAt      *time.Time
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		AvatarRef:    u.AvatarRef,
		Provider:     u.Provider,
		LastSignInAt: u.LastSignInAt,
		CreatedAt:    u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:              uuid.New(),
		Email:           strings.ToLower(strings.TrimSpace(c.Email)),
		DisplayName:     strings.TrimSpace(c.DisplayName),
		AvatarRef:       c.AvatarRef,
		Provider:        c.Provider,
		ProviderSubject: c.ProviderSubject,
		PasswordHash:    c.PasswordHash,
		LastSignInAt:    c.SignedInAt,
	}
}
