package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, Backoff: time.Millisecond, Timeout: time.Second}
}

func TestFetchRoutesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "" {
			t.Errorf("expected Content-Type header to be set")
		}
		w.Write([]byte(`{"route":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testRetryConfig()).WithBaseURL(srv.URL)
	body, err := c.FetchRoutes(context.Background(), "A", "B", time.Now())
	if err != nil {
		t.Fatalf("FetchRoutes: %v", err)
	}
	if string(body) != `{"route":[]}` {
		t.Fatalf("body = %q", body)
	}
}

func TestFetchRoutesRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"route":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testRetryConfig()).WithBaseURL(srv.URL)
	_, err := c.FetchRoutes(context.Background(), "A", "B", time.Now())
	if err != nil {
		t.Fatalf("FetchRoutes: %v", err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", attempts.Load())
	}
}

func TestFetchRoutesDoesNotRetry4xx(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad station code"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testRetryConfig()).WithBaseURL(srv.URL)
	_, err := c.FetchRoutes(context.Background(), "A", "B", time.Now())
	if err == nil {
		t.Fatal("expected error for 4xx response")
	}
	var rejection *UpstreamRejection
	if !asRejection(err, &rejection) {
		t.Fatalf("err = %v, want *UpstreamRejection", err)
	}
	if attempts.Load() != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on 4xx)", attempts.Load())
	}
}

func TestFetchRoutesExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testRetryConfig()).WithBaseURL(srv.URL)
	_, err := c.FetchRoutes(context.Background(), "A", "B", time.Now())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", attempts.Load())
	}
}

func asRejection(err error, target **UpstreamRejection) bool {
	if r, ok := err.(*UpstreamRejection); ok {
		*target = r
		return true
	}
	return false
}
