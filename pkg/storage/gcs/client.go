package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

const (
	pingTimeout          = 5 * time.Second
	defaultPublicBaseURL = "https://storage.googleapis.com"
)

var errClientNotInitialized = errors.New("gcs client not initialized")

// Client writes objects to a single bucket through the GCS JSON API.
type Client struct {
	svc           *storage.Service
	bucket        string
	publicBaseURL string
}

// NewClient builds the storage service and verifies the bucket is listable.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := append(clientOptions(gcp), extra...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs service: %w", err)
	}

	client := &Client{
		svc:           svc,
		bucket:        strings.TrimSpace(cfg.BucketName),
		publicBaseURL: publicBase(cfg.PublicBaseURL),
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func publicBase(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return defaultPublicBaseURL
	}
	return base
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Put stores data at object and returns its public URL.
func (c *Client) Put(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if c == nil || c.svc == nil {
		return "", errClientNotInitialized
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errors.New("object name is required")
	}
	if len(data) == 0 {
		return "", errors.New("object data is empty")
	}

	meta := &storage.Object{
		Name:         object,
		ContentType:  contentType,
		CacheControl: "public, max-age=3600",
	}
	_, err := c.svc.Objects.Insert(c.bucket, meta).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return c.PublicURL(object), nil
}

// PublicURL returns the browser-facing URL of object.
func (c *Client) PublicURL(object string) string {
	if c == nil {
		return ""
	}
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, url.PathEscape(c.bucket), strings.Join(segments, "/"))
}

// Ping lists at most one object, which requires storage.objects.list on the bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Objects.List(c.bucket).MaxResults(1).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("bucket %q does not exist", c.bucket)
		}
		return err
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}
