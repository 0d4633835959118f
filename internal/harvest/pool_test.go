package harvest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/types"
	"github.com/mav-dashboard/harvester/internal/upstream"
)

func testConfig() Config {
	return Config{
		Concurrency:      2,
		BaseDelay:        0, // test mode: a non-positive BaseDelay disables jitter sleeps entirely
		ProgressInterval: 1,
	}
}

func testRetry() upstream.RetryConfig {
	return upstream.RetryConfig{MaxRetries: 1, Backoff: time.Millisecond, Timeout: time.Second}
}

func TestPoolRunWritesOneBlobPerPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"route":[]}`))
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.Client(), testRetry()).WithBaseURL(srv.URL)
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	pool := NewPool(testConfig(), client, store, slog.Default())
	pairs := []types.StationPair{{Origin: "BUDAPEST", Destination: "SZEGED"}, {Origin: "BUDAPEST", Destination: "DEBRECEN"}}

	stats, err := pool.Run(context.Background(), pairs, time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, want 2", stats.Succeeded)
	}
	if !stats.Done() {
		t.Fatal("Done() = false after full run")
	}

	keys, err := store.List(context.Background(), stats.FinishedAt.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List = %v, want 2 blobs", keys)
	}
}

func TestPoolRunRecordsFailuresWithoutAbortingRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.Client(), testRetry()).WithBaseURL(srv.URL)
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	var progressCalls int
	pool := NewPool(testConfig(), client, store, slog.Default())
	pool.OnProgress(func(stats RunStats, result PairResult) {
		progressCalls++
	})

	pairs := []types.StationPair{{Origin: "BUDAPEST", Destination: "SZEGED"}}
	stats, err := pool.Run(context.Background(), pairs, time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", stats.Failed)
	}
	// Once for the Pending -> InFlight transition, once from the per-pair
	// terminal cadence (ProgressInterval=1), and once more invoked
	// unconditionally at the end of the run.
	if progressCalls != 3 {
		t.Fatalf("progressCalls = %d, want 3", progressCalls)
	}
}

func TestPoolRunReportsInFlightTransitionBeforeTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"route":[]}`))
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.Client(), testRetry()).WithBaseURL(srv.URL)
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	var states []PairState
	pool := NewPool(testConfig(), client, store, slog.Default())
	pool.OnProgress(func(stats RunStats, result PairResult) {
		states = append(states, result.State)
	})

	pairs := []types.StationPair{{Origin: "BUDAPEST", Destination: "SZEGED"}}
	if _, err := pool.Run(context.Background(), pairs, time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(states) < 2 || states[0] != PairInFlight {
		t.Fatalf("states = %v, want first state PairInFlight", states)
	}
	if states[1] != PairSucceeded {
		t.Fatalf("states[1] = %v, want PairSucceeded", states[1])
	}
}

func TestPoolRunWithNoPairsIsNoop(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	pool := NewPool(testConfig(), upstream.NewClient(nil, testRetry()), store, nil)
	stats, err := pool.Run(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.TotalPairs != 0 {
		t.Fatalf("TotalPairs = %d, want 0", stats.TotalPairs)
	}
}
