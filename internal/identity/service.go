package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/internal/users"
	pkgauth "github.com/angelmondragon/campusaid-backend/pkg/auth"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/oidc"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/session"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	disallowedDomainMessage   = "email domain is not allowed"
)

// Service is the identity gate: every session is issued and restored here.
type Service interface {
	SignIn(ctx context.Context, idToken string) (*AuthResult, error)
	SignInWithPassword(ctx context.Context, req PasswordSignInRequest) (*AuthResult, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	SignOut(ctx context.Context, accessID string) error
	RestoreSession(ctx context.Context, userID uuid.UUID, accessID string) (*SessionView, error)
	Refresh(ctx context.Context, userID uuid.UUID, accessID, refreshToken string) (*AuthResult, error)
}

type userStore interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByProviderSubject(ctx context.Context, provider enums.AuthProvider, subject string) (*models.User, error)
	RecordSignIn(ctx context.Context, id uuid.UUID, at time.Time, displayName string, avatarRef *string) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type profileReader interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the identity gate dependencies. Verifier may be nil when
// Google sign-in is not configured; SignIn then reports a dependency error.
type ServiceParams struct {
	Users    userStore
	Profiles profileReader
	Sessions sessionManager
	Verifier oidc.TokenVerifier
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Identity config.IdentityConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	users         userStore
	profiles      profileReader
	sessions      sessionManager
	verifier      oidc.TokenVerifier
	jwtCfg        config.JWTConfig
	passwordCfg   config.PasswordConfig
	domains       []string
	allowPassword bool
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	domains := params.Identity.Domains()
	if len(domains) == 0 {
		return nil, fmt.Errorf("at least one allowed domain required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:         params.Users,
		profiles:      params.Profiles,
		sessions:      params.Sessions,
		verifier:      params.Verifier,
		jwtCfg:        params.JWT,
		passwordCfg:   params.Password,
		domains:       domains,
		allowPassword: params.Identity.AllowPassword,
		logg:          params.Logger,
		now:           now,
	}, nil
}

func (s *service) SignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google sign-in is not configured")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "id token required")
	}

	principal, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, oidc.ErrEmailNotVerified) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "email not verified")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid id token")
	}
	if !EmailAllowed(principal.Email, s.domains) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedDomain, disallowedDomainMessage)
	}

	user, err := s.upsertGoogleUser(ctx, principal)
	if err != nil {
		return nil, err
	}

	var avatar *string
	if principal.Picture != "" {
		avatar = &principal.Picture
	}
	if err := s.recordSignIn(ctx, user, principal.DisplayName, avatar); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *service) upsertGoogleUser(ctx context.Context, principal oidc.Principal) (*models.User, error) {
	user, err := s.users.FindByProviderSubject(ctx, enums.AuthProviderGoogle, principal.Subject)
	if err == nil {
		return user, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "lookup identity")
	}

	user, err = s.users.FindByEmail(ctx, principal.Email)
	if err == nil {
		return user, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "lookup identity")
	}

	subject := principal.Subject
	var avatar *string
	if principal.Picture != "" {
		avatar = &principal.Picture
	}
	displayName := principal.DisplayName
	if displayName == "" {
		displayName = localPart(principal.Email)
	}
	user, err = s.users.Create(ctx, users.CreateUserDTO{
		Email:           principal.Email,
		DisplayName:     displayName,
		AvatarRef:       avatar,
		Provider:        enums.AuthProviderGoogle,
		ProviderSubject: &subject,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// lost a race with a concurrent first sign-in
			existing, findErr := s.users.FindByEmail(ctx, principal.Email)
			if findErr == nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create identity")
	}
	return user, nil
}

func (s *service) SignInWithPassword(ctx context.Context, req PasswordSignInRequest) (*AuthResult, error) {
	if !s.allowPassword {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "password sign-in is disabled")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !EmailAllowed(email, s.domains) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedDomain, disallowedDomainMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "lookup identity")
	}
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := security.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	s.upgradeHash(ctx, user, req.Password)

	if err := s.recordSignIn(ctx, user, "", nil); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !s.allowPassword {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "registration is disabled")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"email": "is required"})
	}
	if !EmailAllowed(email, s.domains) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedDomain, disallowedDomainMessage)
	}
	if err := security.CheckPolicy(req.Password, s.passwordCfg); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"password": fmt.Sprintf("must be at least %d characters", security.MinLength(s.passwordCfg)),
		})
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "lookup identity")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = localPart(email)
	}
	now := s.now()
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		DisplayName:  displayName,
		Provider:     enums.AuthProviderPassword,
		PasswordHash: &hash,
		SignedInAt:   &now,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create identity")
	}
	return s.issue(ctx, user)
}

// SignOut is idempotent: revoking an unknown session succeeds.
func (s *service) SignOut(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) RestoreSession(ctx context.Context, userID uuid.UUID, accessID string) (*SessionView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			s.revokeQuietly(ctx, accessID)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load identity")
	}
	if !EmailAllowed(user.Email, s.domains) {
		s.revokeQuietly(ctx, accessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedDomain, disallowedDomainMessage)
	}
	return s.view(ctx, user)
}

func (s *service) Refresh(ctx context.Context, userID uuid.UUID, accessID, refreshToken string) (*AuthResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load identity")
	}
	if !EmailAllowed(user.Email, s.domains) {
		s.revokeQuietly(ctx, accessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedDomain, disallowedDomainMessage)
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, userID, accessID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	accessToken, err := s.mint(user, newAccessID)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: accessToken, RefreshToken: newRefresh, Session: view}, nil
}

func (s *service) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	accessID := session.NewAccessID()
	accessToken, err := s.mint(user, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sessions.Generate(ctx, user.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	view, err := s.view(ctx, user)
	if err != nil {
		s.revokeQuietly(ctx, accessID)
		return nil, err
	}
	return &AuthResult{AccessToken: accessToken, RefreshToken: refreshToken, Session: view}, nil
}

func (s *service) mint(user *models.User, accessID string) (string, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Provider: user.Provider,
		JTI:      accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *service) view(ctx context.Context, user *models.User) (*SessionView, error) {
	profile, err := s.profiles.FindByOwner(ctx, user.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return newSessionView(user, nil), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load profile")
	}
	return newSessionView(user, profile), nil
}

func (s *service) recordSignIn(ctx context.Context, user *models.User, displayName string, avatar *string) error {
	now := s.now()
	if err := s.users.RecordSignIn(ctx, user.ID, now, displayName, avatar); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "record sign-in")
	}
	user.LastSignInAt = &now
	if displayName != "" {
		user.DisplayName = displayName
	}
	if avatar != nil && *avatar != "" {
		user.AvatarRef = avatar
	}
	return nil
}

func (s *service) revokeQuietly(ctx context.Context, accessID string) {
	if strings.TrimSpace(accessID) == "" {
		return
	}
	_ = s.sessions.Revoke(ctx, accessID)
}

// upgradeHash re-hashes a verified password when the stored hash used older
// Argon2 costs. Failure only costs a retry on the next login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(*user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.SetPasswordHash(ctx, user.ID, hash)
	}
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "identity.password_rehash_failed")
	}
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

