package loader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/types"
)

func putObservation(t *testing.T, store *osa.FilesystemStore, key string, success bool) {
	t.Helper()
	obs := types.Observation{
		Pair:       types.StationPair{Origin: "A", Destination: "B"},
		CapturedAt: time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC),
		TravelDate: "2025-08-01",
		Success:    success,
	}
	data, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.Put(context.Background(), key, data, "application/json"); err != nil {
		t.Fatalf("seed Put %s: %v", key, err)
	}
}

func TestLoadDayFindsRequestedDate(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	putObservation(t, store, "2025-08-01/bulk_A_B_20250801_080000.json", true)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if result.Date != "2025-08-01" {
		t.Errorf("Date = %q, want 2025-08-01", result.Date)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("len(Observations) = %d, want 1", len(result.Observations))
	}
}

func TestLoadDayLooksBackWhenRequestedDateIsEmpty(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	putObservation(t, store, "2025-07-30/bulk_A_B_20250730_080000.json", true)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if result.Date != "2025-07-30" {
		t.Errorf("Date = %q, want 2025-07-30", result.Date)
	}
}

func TestLoadDayReturnsErrorWhenLookbackExhausted(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	l := NewLoader(store, nil)
	_, err = l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 3)
	if !errors.Is(err, ErrNoDataAvailable) {
		t.Fatalf("LoadDay: err = %v, want ErrNoDataAvailable", err)
	}
}

func TestLoadDayIgnoresNonBulkObjects(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if err := store.Put(context.Background(), "2025-08-01/quick_stats.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("seed Put: %v", err)
	}
	putObservation(t, store, "2025-08-01/bulk_A_B_20250801_080000.json", true)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("len(Observations) = %d, want 1 (derived artifact ignored)", len(result.Observations))
	}
}

func TestLoadDayWithOnlyNonBulkObjectsKeepsLookingBack(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	// The requested day holds only a derived artifact; the prior day holds a
	// real Observation. The loader must fall through to the prior day.
	if err := store.Put(context.Background(), "2025-08-01/quick_stats.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("seed Put: %v", err)
	}
	putObservation(t, store, "2025-07-31/bulk_A_B_20250731_080000.json", true)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if result.Date != "2025-07-31" {
		t.Errorf("Date = %q, want 2025-07-31", result.Date)
	}
}

func TestLoadDayDedupesToLatestPerPair(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	putObservation(t, store, "2025-08-01/bulk_A_B_20250801_080000.json", true)
	putObservation(t, store, "2025-08-01/bulk_A_B_20250801_090000.json", false)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("len(Observations) = %d, want 1 (deduped)", len(result.Observations))
	}
	if result.Observations[0].Success {
		t.Error("expected the later (09:00:00, success=false) blob to win, got success=true")
	}
}

func TestLoadDaySkipsMalformedBlobs(t *testing.T) {
	store, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if err := store.Put(context.Background(), "2025-08-01/bulk_A_B_20250801_080000.json", []byte("not json"), "application/json"); err != nil {
		t.Fatalf("seed Put: %v", err)
	}
	putObservation(t, store, "2025-08-01/bulk_C_D_20250801_080000.json", true)

	l := NewLoader(store, nil)
	result, err := l.LoadDay(context.Background(), time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 8)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if result.SkippedBlobs != 1 {
		t.Errorf("SkippedBlobs = %d, want 1", result.SkippedBlobs)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("len(Observations) = %d, want 1", len(result.Observations))
	}
}

func TestIsBulkBlobName(t *testing.T) {
	cases := map[string]bool{
		"bulk_A_B_20250801_080000.json": true,
		"quick_stats.json":               false,
		"delay_aware_train_map.html":     false,
	}
	for name, want := range cases {
		if got := IsBulkBlobName(name); got != want {
			t.Errorf("IsBulkBlobName(%q) = %v, want %v", name, got, want)
		}
	}
}
