package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/directory"
)

func TestClient_DisplayName_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "u-admin", "name": "Ada Admin"})
		}
	}))
	defer ts.Close()

	cl, err := directory.NewClient(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	name, err := cl.DisplayName(ctx, "u-admin")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if name != "Ada Admin" {
		t.Fatalf("name = %q", name)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_DisplayName_FallsBackToLegacyPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/users/u-1" {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "u-1", "name": "Legacy Lee"})
			return
		}
		w.WriteHeader(404)
	}))
	defer ts.Close()

	cl, err := directory.NewClient(ts.URL, "", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	name, err := cl.DisplayName(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if name != "Legacy Lee" {
		t.Fatalf("name = %q", name)
	}
}

func TestClient_DisplayName_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := directory.NewClient(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err = cl.DisplayName(ctx, "ghost"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestStaticDirectory(t *testing.T) {
	s, err := directory.ParseStatic(`{"u-admin":"Ada Admin","u-agent":"Avery Agent"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	name, err := s.DisplayName(context.Background(), "u-admin")
	if err != nil || name != "Ada Admin" {
		t.Fatalf("got %q, %v", name, err)
	}
	if _, err := s.DisplayName(context.Background(), "ghost"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	if _, err := directory.ParseStatic(`{"broken"`); err == nil {
		t.Fatalf("expected parse error")
	}
}
