package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

// Client wraps the Pub/Sub v2 client for the lifecycle topic and its analytics
// subscription. Publishers are created once per topic and stopped on Close.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// resource is a configured topic or subscription verified at startup and on Ping.
type resource struct {
	kind resourceKind
	name string
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoResources       = errors.New("pubsub lifecycle topic or analytics subscription is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// NewClient creates a Pub/Sub v2 client and verifies the lifecycle topic and the
// analytics subscription exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  projectID,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        cfg.LifecycleTopic,
			"subscription": cfg.AnalyticsSubscription,
		}), "pubsub.client_initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func configuredResources(cfg config.PubSubConfig) []resource {
	var out []resource
	if name := strings.TrimSpace(cfg.LifecycleTopic); name != "" {
		out = append(out, resource{kind: kindTopic, name: name})
	}
	if name := strings.TrimSpace(cfg.AnalyticsSubscription); name != "" {
		out = append(out, resource{kind: kindSubscription, name: name})
	}
	return out
}

func (c *Client) verify(ctx context.Context) error {
	resources := configuredResources(c.cfg)
	if len(resources) == 0 {
		return errNoResources
	}
	for _, res := range resources {
		if err := c.exists(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) exists(ctx context.Context, res resource) error {
	fullName := c.resourceName(res.name, res.kind)
	if fullName == "" {
		return fmt.Errorf("%s %q not configured", res.kind, res.name)
	}

	var err error
	switch res.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", res.kind, fullName)
	default:
		return fmt.Errorf("checking %s %q: %w", res.kind, fullName, err)
	}
}

// Subscription returns a v2 Subscriber handle for a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(name, kindSubscription)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// AnalyticsSubscription returns the subscriber feeding the analytics worker.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns the cached publisher for a topic ID or resource name,
// creating it on first use.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(name, kindTopic)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	if c.publishers == nil {
		c.publishers = map[string]*pubsub.Publisher{}
	}
	p := c.client.Publisher(fullName)
	c.publishers[fullName] = p
	return p
}

// LifecyclePublisher returns the publisher for lifecycle events.
func (c *Client) LifecyclePublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.LifecycleTopic)
}

// Ping re-checks that the topic and subscription are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

// Close flushes and stops every publisher, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) resourceName(name string, kind resourceKind) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	if c == nil || strings.TrimSpace(c.projectID) == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
