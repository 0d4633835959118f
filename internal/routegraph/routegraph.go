// Package routegraph is the external, read-only route-geometry ingestion
// collaborator: it supplies the static RouteGraph the Delay Joiner matches
// pairs against. The harvester never depends on how a RouteGraph is
// produced — only on the Source interface — so the GraphQL ingestion the
// original system used stays outside the module boundary; this package
// ships a JSON-fixture Source instead, grounded in
// original_source/dashboard/loaders/route_loader.py's Route/Pattern/Stop
// shapes without depending on a GraphQL client library (see DESIGN.md).
package routegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mav-dashboard/harvester/internal/types"
)

// Source supplies a RouteGraph. A real GraphQL-backed implementation is a
// drop-in the rest of the harvester never needs to know about.
type Source interface {
	Load(ctx context.Context) (types.RouteGraph, error)
}

// FileSource reads a RouteGraph from a local JSON fixture shaped like the
// route-geometry GraphQL response: a flat list of routes, each carrying one
// or more patterns of ordered stops with raw station identifiers.
type FileSource struct {
	Path string
}

// NewFileSource builds a FileSource reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// fixtureRoute mirrors route_loader.py's Route/Pattern/Stop dataclasses,
// the shape a GraphQL route-geometry response would be unmarshalled into.
type fixtureRoute struct {
	ID       string           `json:"id"`
	Desc     string           `json:"desc"`
	Patterns []fixturePattern `json:"patterns"`
}

type fixturePattern struct {
	ID    string        `json:"id"`
	Stops []fixtureStop `json:"stops"`
}

type fixtureStop struct {
	RawID string  `json:"raw_id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Load reads and flattens the fixture into a types.RouteGraph. Every route's
// patterns are flattened into a single Patterns slice since the Delay
// Joiner matches purely on Pattern, not on the owning Route.
func (f *FileSource) Load(_ context.Context) (types.RouteGraph, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return types.RouteGraph{}, fmt.Errorf("routegraph: reading %s: %w", f.Path, err)
	}

	var routes []fixtureRoute
	if err := json.Unmarshal(data, &routes); err != nil {
		return types.RouteGraph{}, fmt.Errorf("routegraph: decoding %s: %w", f.Path, err)
	}

	var graph types.RouteGraph
	for _, route := range routes {
		for _, p := range route.Patterns {
			pattern := types.Pattern{ID: p.ID, Desc: route.Desc}
			for _, s := range p.Stops {
				pattern.Stops = append(pattern.Stops, types.Stop{
					StationID: extractPureStationID(s.RawID),
					Name:      s.Name,
					Lat:       s.Lat,
					Lon:       s.Lon,
				})
			}
			graph.Patterns = append(graph.Patterns, pattern)
		}
	}
	return graph, nil
}

// extractPureStationID mirrors route_loader.py's extract_pure_station_id:
// a raw id like "1:005514449_0" becomes "005514449"; malformed ids pass
// through unchanged rather than failing the whole fixture load.
func extractPureStationID(rawID string) string {
	parts := strings.SplitN(rawID, ":", 2)
	if len(parts) != 2 {
		return rawID
	}
	return strings.SplitN(parts[1], "_", 2)[0]
}
