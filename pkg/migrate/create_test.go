package migrate

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestCreateAtRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	path, err := createAt(dir, "Add Offer Notes!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "20261001120000_add_offer_notes.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	body, _ := os.ReadFile(path)
	if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- revert add_offer_notes") {
		t.Fatalf("unexpected template:\n%s", body)
	}

	if _, err := createAt(dir, "add offer notes", now); err == nil {
		t.Fatal("expected collision on identical version and slug")
	}
}
