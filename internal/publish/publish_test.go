package publish

import (
	"context"
	"testing"

	"github.com/mav-dashboard/harvester/internal/osa"
)

func TestPublishUploadsAllLocalBlobs(t *testing.T) {
	local, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	dest, err := osa.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{
		"2025-08-01/bulk_A_B_20250801_080000.json",
		"2025-08-01/bulk_B_C_20250801_081000.json",
	} {
		if err := local.Put(ctx, key, []byte("{}"), "application/json"); err != nil {
			t.Fatalf("seed Put: %v", err)
		}
	}

	p := NewPublisher(local, dest, nil)
	stats, err := p.Publish(ctx, "2025-08-01/")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if stats.Attempts != 2 || stats.Uploaded != 2 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want 2/2/0", stats)
	}

	keys, err := dest.List(ctx, "2025-08-01/")
	if err != nil {
		t.Fatalf("List dest: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("dest has %d keys, want 2", len(keys))
	}
}

func TestPublishSkipsAlreadyUploadedBlobs(t *testing.T) {
	local, _ := osa.NewFilesystemStore(t.TempDir())
	dest, _ := osa.NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	key := "2025-08-01/bulk_A_B_20250801_080000.json"
	local.Put(ctx, key, []byte("{}"), "application/json")
	dest.Put(ctx, key, []byte("{}"), "application/json")

	p := NewPublisher(local, dest, nil)
	stats, err := p.Publish(ctx, "2025-08-01/")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if stats.Uploaded != 1 {
		t.Fatalf("Uploaded = %d, want 1 (already-present blob counted as uploaded)", stats.Uploaded)
	}
}

func TestPublishIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	local, _ := osa.NewFilesystemStore(t.TempDir())
	dest, _ := osa.NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	key := "2025-08-01/bulk_A_B_20250801_080000.json"
	local.Put(ctx, key, []byte("{}"), "application/json")

	p := NewPublisher(local, dest, nil)
	if _, err := p.Publish(ctx, "2025-08-01/"); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	stats, err := p.Publish(ctx, "2025-08-01/")
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if stats.Errors != 0 {
		t.Fatalf("second Publish Errors = %d, want 0", stats.Errors)
	}
}

func TestLocalDayDirsListsDatePartitions(t *testing.T) {
	local, _ := osa.NewFilesystemStore(t.TempDir())
	dest, _ := osa.NewFilesystemStore(t.TempDir())
	ctx := context.Background()
	local.Put(ctx, "2025-08-01/bulk_A_B_20250801_080000.json", []byte("{}"), "")
	local.Put(ctx, "2025-08-02/bulk_A_B_20250802_080000.json", []byte("{}"), "")

	p := NewPublisher(local, dest, nil)
	dirs, err := p.LocalDayDirs()
	if err != nil {
		t.Fatalf("LocalDayDirs: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("LocalDayDirs = %v, want 2 entries", dirs)
	}
}
