package instance

import "testing"

func TestGetIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-1")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "cron-1" {
		t.Fatalf("expected cron-1 got %s", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	t.Setenv("DYNO", "web.2")
	if got := GetID(); got != "web.2" {
		t.Fatalf("expected web.2 got %s", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	t.Setenv("DYNO", "")
	if GetID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
