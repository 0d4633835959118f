// Package mapgen renders the two per-day geospatial delay visualizations
// (delay_aware_train_map, max_delay_train_map) as self-contained
// Leaflet-via-CDN HTML files. No Go mapping/geospatial library is present
// anywhere in the retrieved reference corpus (see DESIGN.md), so this
// package uses stdlib html/template exclusively, reproducing the structure
// of original_source/map_generator_refactored/visualizers/
// delay_map_visualizer.py and max_delay_map_visualizer.py (color-coded
// polylines over a Leaflet basemap) without depending on folium or any Go
// equivalent.
package mapgen

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/mav-dashboard/harvester/internal/types"
)

// segmentView is one rendered polyline: two coordinates plus the color and
// tooltip text derived from its SegmentDelay.
type segmentView struct {
	FromLat, FromLon float64
	ToLat, ToLon     float64
	Color            string
	Tooltip          string
}

// stationIndex maps a station id to its coordinates across every pattern in
// graph, used to resolve a SegmentKey's two endpoints to lat/lon.
type stationIndex map[string]types.Stop

func buildStationIndex(graph types.RouteGraph) stationIndex {
	idx := make(stationIndex)
	for _, p := range graph.Patterns {
		for _, s := range p.Stops {
			idx[s.StationID] = s
		}
	}
	return idx
}

// delayColor mirrors delay_map_visualizer.py's get_delay_color thresholds:
// green under 2 minutes, yellow under 10, orange under 20, dark red at or
// above 20.
func delayColor(delayMinutes float64) string {
	switch {
	case delayMinutes < 2:
		return "#00C851"
	case delayMinutes < 10:
		return "#FFD700"
	case delayMinutes < 20:
		return "#FF8800"
	default:
		return "#AA0000"
	}
}

func toSegmentViews(segments []types.SegmentDelay, idx stationIndex, metric func(types.SegmentDelay) float64, tooltipLabel string) []segmentView {
	var views []segmentView
	for _, seg := range segments {
		from, ok1 := idx[seg.FromStation]
		to, ok2 := idx[seg.ToStation]
		if !ok1 || !ok2 {
			continue
		}
		value := metric(seg)
		views = append(views, segmentView{
			FromLat: from.Lat, FromLon: from.Lon,
			ToLat: to.Lat, ToLon: to.Lon,
			Color:   delayColor(value),
			Tooltip: tooltipLabel + ": " + strconv.FormatFloat(value, 'f', 1, 64) + " min",
		})
	}
	return views
}

// RenderDelayAwareMap renders delay_aware_train_map.html, coloring every
// segment by its unweighted mean delay (SegmentDelay.MeanDelayMinutes).
func RenderDelayAwareMap(segments []types.SegmentDelay, graph types.RouteGraph) ([]byte, error) {
	views := toSegmentViews(segments, buildStationIndex(graph), func(s types.SegmentDelay) float64 { return s.MeanDelayMinutes }, "Avg delay")
	return render("Delay-aware train map", views)
}

// RenderMaxDelayMap renders max_delay_train_map.html, coloring every segment
// by its aggregated maximum delay (SegmentDelay.MaxDelayMinutes).
func RenderMaxDelayMap(segments []types.SegmentDelay, graph types.RouteGraph) ([]byte, error) {
	views := toSegmentViews(segments, buildStationIndex(graph), func(s types.SegmentDelay) float64 { return float64(s.MaxDelayMinutes) }, "Max delay")
	return render("Max delay train map", views)
}

type pageData struct {
	Title    string
	Segments []segmentView
}

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html,body,#map{height:100%;margin:0}</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([47.1625, 19.5033], 7);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var segments = [
{{- range .Segments}}
  {coords: [[{{.FromLat}}, {{.FromLon}}], [{{.ToLat}}, {{.ToLon}}]], color: {{.Color}}, tooltip: {{.Tooltip}}},
{{- end}}
];
segments.forEach(function(seg) {
  L.polyline(seg.coords, {color: seg.color, weight: 4}).bindTooltip(seg.tooltip).addTo(map);
});
</script>
</body>
</html>
`))

func render(title string, segments []segmentView) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{Title: title, Segments: segments}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
