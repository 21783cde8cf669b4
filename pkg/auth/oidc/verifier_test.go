package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://accounts.google.com"
	testClientID = "campusaid-web"
)

func newStaticVerifier(t *testing.T) (*GoogleVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keySet := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &GoogleVerifier{
		verifier: gooidc.NewVerifier(testIssuer, keySet, &gooidc.Config{ClientID: testClientID}),
	}, key
}

func signToken(t *testing.T, key *rsa.PrivateKey, overrides jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "google-sub-1",
		"email":          " Ada@U.Northwestern.EDU ",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://example.com/ada.png",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestGoogleVerifierVerify(t *testing.T) {
	verifier, key := newStaticVerifier(t)

	principal, err := verifier.Verify(context.Background(), signToken(t, key, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.Subject != "google-sub-1" {
		t.Fatalf("unexpected subject %q", principal.Subject)
	}
	if principal.Email != "ada@u.northwestern.edu" {
		t.Fatalf("expected normalized email, got %q", principal.Email)
	}
	if principal.DisplayName != "Ada Lovelace" || principal.Picture == "" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestGoogleVerifierRejectsUnverifiedEmail(t *testing.T) {
	verifier, key := newStaticVerifier(t)

	_, err := verifier.Verify(context.Background(), signToken(t, key, jwt.MapClaims{"email_verified": false}))
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestGoogleVerifierRejectsWrongAudience(t *testing.T) {
	verifier, key := newStaticVerifier(t)

	if _, err := verifier.Verify(context.Background(), signToken(t, key, jwt.MapClaims{"aud": "someone-else"})); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestGoogleVerifierRejectsExpired(t *testing.T) {
	verifier, key := newStaticVerifier(t)

	expired := jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix(), "iat": time.Now().Add(-2 * time.Hour).Unix()}
	if _, err := verifier.Verify(context.Background(), signToken(t, key, expired)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
