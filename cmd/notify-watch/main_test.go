package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/client"
)

func TestSnapshotPrinterReportsOnlyChanges(t *testing.T) {
	var buf bytes.Buffer
	printer := newSnapshotPrinter(&buf)
	at := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)

	first := client.Notification{OfferID: uuid.New(), HelperName: "Ana", HelperYear: "Junior", HelperMajor: "Biology", RequestTitle: "Lab notes"}
	second := client.Notification{OfferID: uuid.New(), HelperName: "Ben", HelperYear: "Senior", HelperMajor: "Math", RequestTitle: "Lab notes"}

	printer.Print(client.Snapshot{Items: []client.Notification{first}, Badge: 1, FetchedAt: at})
	printer.Print(client.Snapshot{Items: []client.Notification{first}, Badge: 1, FetchedAt: at})
	printer.Print(client.Snapshot{Items: []client.Notification{first, second}, Badge: 2, FetchedAt: at})

	out := buf.String()
	if strings.Count(out, "new offer from Ana") != 1 {
		t.Fatalf("expected Ana reported once:\n%s", out)
	}
	if strings.Count(out, "new offer from Ben") != 1 {
		t.Fatalf("expected Ben reported once:\n%s", out)
	}
	if strings.Count(out, "pending offers:") != 2 {
		t.Fatalf("expected two badge lines:\n%s", out)
	}
}
