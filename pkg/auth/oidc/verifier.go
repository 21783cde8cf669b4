package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
)

// ErrEmailNotVerified is returned when the provider has not verified the address.
var ErrEmailNotVerified = errors.New("email not verified by identity provider")

// Principal is the subset of ID token claims the identity gate consumes.
type Principal struct {
	Subject     string
	Email       string
	DisplayName string
	Picture     string
}

// TokenVerifier turns a raw ID token into a verified principal.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Principal, error)
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleVerifier validates Google-issued ID tokens against the configured client id.
type GoogleVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewGoogleVerifier discovers the provider keys and builds a verifier.
func NewGoogleVerifier(ctx context.Context, cfg config.IdentityConfig) (*GoogleVerifier, error) {
	if strings.TrimSpace(cfg.GoogleClientID) == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	provider, err := gooidc.NewProvider(ctx, cfg.GoogleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &GoogleVerifier{
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.GoogleClientID}),
	}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (Principal, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Principal{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("decode id token claims: %w", err)
	}
	if !claims.EmailVerified {
		return Principal{}, ErrEmailNotVerified
	}

	return Principal{
		Subject:     idToken.Subject,
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: strings.TrimSpace(claims.Name),
		Picture:     claims.Picture,
	}, nil
}
