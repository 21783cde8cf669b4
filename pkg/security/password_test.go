package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		MinLength:        6,
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("wildcats-2026", testPasswordConfig())
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=32768,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifyPassword("wildcats-2026", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := security.HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); !errors.Is(err, security.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestCheckPolicy(t *testing.T) {
	cfg := testPasswordConfig()
	if err := security.CheckPolicy("12345", cfg); !errors.Is(err, security.ErrPasswordTooShort) {
		t.Fatalf("expected short password to fail, got %v", err)
	}
	if err := security.CheckPolicy("123456", cfg); err != nil {
		t.Fatalf("expected six characters to pass, got %v", err)
	}
	if err := security.CheckPolicy("ééééé", config.PasswordConfig{MinLength: 5}); err != nil {
		t.Fatalf("expected rune counting, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testPasswordConfig()
	hash, err := security.HashPassword("wildcats-2026", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if security.NeedsRehash(hash, cfg) {
		t.Fatal("fresh hash should match current parameters")
	}

	stronger := cfg
	stronger.ArgonTime = 3
	if !security.NeedsRehash(hash, stronger) {
		t.Fatal("expected rehash when time cost increases")
	}
	if !security.NeedsRehash("$argon2id$v=19$garbage", cfg) {
		t.Fatal("expected rehash for unparseable hash")
	}
}

func TestVerifyPasswordRejectsWrongVersion(t *testing.T) {
	hash, _ := security.HashPassword("wildcats-2026", testPasswordConfig())
	tampered := strings.Replace(hash, "v=19", "v=16", 1)
	if _, err := security.VerifyPassword("wildcats-2026", tampered); !errors.Is(err, security.ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for unknown version, got %v", err)
	}
}
