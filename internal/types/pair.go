// Package types holds the value objects shared across the harvest and
// analytics packages: station pairs, observations, itineraries, and the
// derived per-pair and per-segment delay aggregates.
package types

import "fmt"

// StationPair is an ordered origin/destination key. Station identifiers are
// opaque strings; this package never attempts to resolve them to names.
type StationPair struct {
	Origin      string
	Destination string
}

// String renders the pair as "origin->destination", used in log lines.
// Blob filenames join origin and destination with underscores instead.
func (p StationPair) String() string {
	return fmt.Sprintf("%s->%s", p.Origin, p.Destination)
}

// Valid reports whether both endpoints are non-empty.
func (p StationPair) Valid() bool {
	return p.Origin != "" && p.Destination != ""
}
