package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/campusaid-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate dir: %v", err)
	}
	if err := migrate.ValidateFS(migrate.Migrations()); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestOffersMigrationGuardsDuplicates(t *testing.T) {
	content := readMigration(t, "create_offers")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS offers",
		"REFERENCES help_requests(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS offers_active_request_helper_idx ON offers (request_id, helper_id)",
		"WHERE status <> 'declined'",
		"CREATE UNIQUE INDEX IF NOT EXISTS offers_one_accepted_per_request_idx",
		"DROP TABLE IF EXISTS offers",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestHelpRequestsMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_help_requests")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS help_requests",
		"CHECK (char_length(title) BETWEEN 1 AND 100)",
		"CHECK (char_length(description) BETWEEN 1 AND 500)",
		"CHECK (status IN ('open', 'accepted', 'closed'))",
		"DROP TABLE IF EXISTS help_requests",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Offer Notes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_offer_notes.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate created migration: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for empty sanitized name")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}
