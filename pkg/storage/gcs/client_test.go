package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
)

type fakeGCS struct {
	mu         sync.Mutex
	listStatus int
	uploads    []string
}

func (f *fakeGCS) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/b/avatars/o") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			status := f.listStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"kind":"storage#objects","items":[]}`)
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read body: %v", err)
			}
			f.mu.Lock()
			f.uploads = append(f.uploads, string(body))
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"name":"profile-photos/u/1_me.png","bucket":"avatars"}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestClient(t *testing.T, fake *fakeGCS) (*Client, error) {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(
		context.Background(),
		config.GCSConfig{BucketName: "avatars", PublicBaseURL: "https://cdn.example.edu/"},
		config.GCPConfig{},
		nil,
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestPutUploadsAndReturnsPublicURL(t *testing.T) {
	fake := &fakeGCS{}
	client, err := newTestClient(t, fake)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	got, err := client.Put(context.Background(), "profile-photos/u/1_me.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if got != "https://cdn.example.edu/avatars/profile-photos/u/1_me.png" {
		t.Fatalf("unexpected url %q", got)
	}
	if len(fake.uploads) != 1 || !strings.Contains(fake.uploads[0], "png-bytes") {
		t.Fatalf("unexpected uploads %v", fake.uploads)
	}
}

func TestPutRejectsEmptyInput(t *testing.T) {
	client, err := newTestClient(t, &fakeGCS{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Put(context.Background(), "", "image/png", []byte("x")); err == nil {
		t.Fatal("expected error for empty object")
	}
	if _, err := client.Put(context.Background(), "a.png", "image/png", nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestNewClientFailsWhenBucketMissing(t *testing.T) {
	if _, err := newTestClient(t, &fakeGCS{listStatus: http.StatusNotFound}); err == nil {
		t.Fatal("expected health check error")
	}
}

func TestNewClientRequiresBucket(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCSConfig{}, config.GCPConfig{}, nil); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestPublicURLEscapesSegments(t *testing.T) {
	c := &Client{bucket: "avatars", publicBaseURL: publicBase("")}
	got := c.PublicURL("/profile-photos/abc/1_my photo.png")
	want := "https://storage.googleapis.com/avatars/profile-photos/abc/1_my%20photo.png"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.Put(context.Background(), "a", "image/png", []byte("x")); err == nil {
		t.Fatal("expected error on nil client")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error on nil client ping")
	}
}
