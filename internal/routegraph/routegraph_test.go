package routegraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const fixture = `[
  {
    "id": "route-1",
    "desc": "Budapest - Szeged",
    "patterns": [
      {
        "id": "pattern-1",
        "stops": [
          {"raw_id": "1:005514449_0", "name": "Budapest-Nyugati", "lat": 47.51, "lon": 19.07},
          {"raw_id": "1:005520236_0", "name": "Szeged", "lat": 46.25, "lon": 20.15}
        ]
      }
    ]
  }
]`

func TestFileSourceLoadFlattensPatterns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.json")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	src := NewFileSource(path)
	graph, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(graph.Patterns) != 1 {
		t.Fatalf("len(Patterns) = %d, want 1", len(graph.Patterns))
	}
	pattern := graph.Patterns[0]
	if pattern.Desc != "Budapest - Szeged" {
		t.Errorf("Desc = %q, want %q", pattern.Desc, "Budapest - Szeged")
	}
	if len(pattern.Stops) != 2 {
		t.Fatalf("len(Stops) = %d, want 2", len(pattern.Stops))
	}
	if pattern.Stops[0].StationID != "005514449" {
		t.Errorf("Stops[0].StationID = %q, want %q", pattern.Stops[0].StationID, "005514449")
	}
	if pattern.Stops[1].Name != "Szeged" {
		t.Errorf("Stops[1].Name = %q, want %q", pattern.Stops[1].Name, "Szeged")
	}
}

func TestFileSourceLoadMissingFile(t *testing.T) {
	src := NewFileSource("/nonexistent/routes.json")
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("Load: expected error for missing file, got nil")
	}
}

func TestExtractPureStationIDPassesThroughMalformed(t *testing.T) {
	if got := extractPureStationID("not-a-colon-id"); got != "not-a-colon-id" {
		t.Errorf("extractPureStationID = %q, want unchanged input", got)
	}
}
