package identity

import (
	"github.com/angelmondragon/campusaid-backend/internal/profiles"
	"github.com/angelmondragon/campusaid-backend/internal/users"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
)

// GoogleSignInRequest carries the ID token obtained by the browser from Google.
type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"notblank"`
}

// PasswordSignInRequest is the local-development credential login.
type PasswordSignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"notblank"`
}

// RegisterRequest creates a password identity.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"notblank"`
	DisplayName string `json:"display_name"`
}

// SessionView merges the identity with its profile, when one exists.
type SessionView struct {
	User            *users.UserDTO       `json:"user"`
	Profile         *profiles.ProfileDTO `json:"profile,omitempty"`
	NeedsOnboarding bool                 `json:"needs_onboarding"`
}

// AuthResult is returned by every flow that issues a session.
type AuthResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Session      *SessionView `json:"session"`
}

func newSessionView(user *models.User, profile *models.Profile) *SessionView {
	view := &SessionView{User: users.FromModel(user)}
	if profile == nil {
		view.NeedsOnboarding = true
		return view
	}
	view.Profile = profiles.FromModel(profile)
	if profile.AvatarRef != nil {
		view.User.AvatarRef = profile.AvatarRef
	}
	return view
}
