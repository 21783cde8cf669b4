package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "campus-dev"}

	tests := []struct {
		name string
		in   string
		kind resourceKind
		want string
	}{
		{"topic id", "lifecycle", kindTopic, "projects/campus-dev/topics/lifecycle"},
		{"padded subscription", " analytics ", kindSubscription, "projects/campus-dev/subscriptions/analytics"},
		{"full topic passthrough", "projects/other/topics/lifecycle", kindTopic, "projects/other/topics/lifecycle"},
		{"topic path as subscription", "projects/other/topics/lifecycle", kindSubscription, "projects/campus-dev/subscriptions/projects/other/topics/lifecycle"},
		{"blank", "", kindTopic, ""},
	}
	for _, tt := range tests {
		if got := c.resourceName(tt.in, tt.kind); got != tt.want {
			t.Fatalf("%s: expected %q got %q", tt.name, tt.want, got)
		}
	}

	if got := (&Client{}).resourceName("lifecycle", kindTopic); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestConfiguredResources(t *testing.T) {
	if got := configuredResources(config.PubSubConfig{}); len(got) != 0 {
		t.Fatalf("expected no resources, got %v", got)
	}
	got := configuredResources(config.PubSubConfig{LifecycleTopic: "lifecycle", AnalyticsSubscription: " analytics "})
	want := []resource{{kind: kindTopic, name: "lifecycle"}, {kind: kindSubscription, name: "analytics"}}
	if len(got) != len(want) {
		t.Fatalf("unexpected resources %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resource %d: expected %v got %v", i, want[i], got[i])
		}
	}
}

func TestVerifyRequiresResources(t *testing.T) {
	c := &Client{projectID: "campus-dev"}
	if err := c.verify(context.Background()); !errors.Is(err, errNoResources) {
		t.Fatalf("expected errNoResources, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}); len(opts) != 1 {
		t.Fatalf("expected one option, got %d", len(opts))
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("lifecycle") != nil || c.LifecyclePublisher() != nil {
		t.Fatal("expected nil publisher")
	}
	if c.Subscription("analytics") != nil || c.AnalyticsSubscription() != nil {
		t.Fatal("expected nil subscriber")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
