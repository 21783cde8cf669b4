package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/types"
)

const (
	defaultTimeout              = 10 * time.Second
	errorBodyReadLimit    int64 = 4096
	idempotencyKeyHeader        = "Idempotency-Key"
)

var (
	errBaseURLRequired = errors.New("api base url is required")
	errTokenRequired   = errors.New("access token is required")
)

// Client calls the authenticated CampusAid endpoints on behalf of one session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client for baseURL (for example https://api.campusaid.app)
// authenticating with the given access token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		token:      trimmedToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Notification is one pending offer on a request the caller created.
type Notification struct {
	RequestID    uuid.UUID `json:"request_id"`
	RequestTitle string    `json:"request_title"`
	OfferID      uuid.UUID `json:"offer_id"`
	HelperID     uuid.UUID `json:"helper_id"`
	HelperName   string    `json:"helper_name"`
	HelperYear   string    `json:"helper_year"`
	HelperMajor  string    `json:"helper_major"`
	CreatedAtMs  int64     `json:"created_at_ms"`
}

type Badge struct {
	Count int64 `json:"count"`
}

type HelpRequest struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	CreatorID    uuid.UUID `json:"creator_id"`
	CreatorName  string    `json:"creator_name"`
	CreatorEmail string    `json:"creator_email,omitempty"`
	Status       string    `json:"status"`
	CreatedAtMs  int64     `json:"created_at_ms"`
}

type RequestPage struct {
	Items      []HelpRequest `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type Offer struct {
	ID          uuid.UUID `json:"id"`
	RequestID   uuid.UUID `json:"request_id"`
	HelperID    uuid.UUID `json:"helper_id"`
	HelperName  string    `json:"helper_name"`
	HelperEmail string    `json:"helper_email,omitempty"`
	Status      string    `json:"status"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// CreateRequestInput is the payload for posting a help request.
type CreateRequestInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListOptions filters the open board. Zero values are omitted.
type ListOptions struct {
	Category string
	Cursor   string
	Limit    int
}

func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Badge(ctx context.Context) (*Badge, error) {
	var out Badge
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications/badge", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOpenRequests(ctx context.Context, opts ListOptions) (*RequestPage, error) {
	query := url.Values{}
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	path := "/api/v1/requests"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out RequestPage
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRequest posts a help request. idempotencyKey may be empty.
func (c *Client) CreateRequest(ctx context.Context, input CreateRequestInput, idempotencyKey string) (*HelpRequest, error) {
	var out HelpRequest
	if err := c.do(ctx, http.MethodPost, "/api/v1/requests", input, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MakeOffer(ctx context.Context, requestID uuid.UUID) (*Offer, error) {
	var out Offer
	path := fmt.Sprintf("/api/v1/requests/%s/offers", requestID)
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AcceptOffer(ctx context.Context, requestID, offerID uuid.UUID) (*Offer, error) {
	return c.offerAction(ctx, requestID, offerID, "accept")
}

func (c *Client) DeclineOffer(ctx context.Context, requestID, offerID uuid.UUID) (*Offer, error) {
	return c.offerAction(ctx, requestID, offerID, "decline")
}

func (c *Client) offerAction(ctx context.Context, requestID, offerID uuid.UUID, action string) (*Offer, error) {
	var out Offer
	path := fmt.Sprintf("/api/v1/requests/%s/offers/%s/%s", requestID, offerID, action)
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "api client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

// decodeAPIError rebuilds the server's typed error from the error envelope so
// callers can branch with pkgerrors.IsCode.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "unexpected api response")
	}
	message := envelope.Error.Message
	if envelope.Error.RequestID != "" {
		message += " (request " + envelope.Error.RequestID + ")"
	}
	apiErr := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), message)
	if envelope.Error.Details != nil {
		apiErr = apiErr.WithDetails(envelope.Error.Details)
	}
	return apiErr
}
