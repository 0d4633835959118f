// Package joiner implements the Delay Joiner: aggregating per-pair delay
// observations into per-segment statistics against a static RouteGraph.
// Grounded in original_source/dashboard/loaders/data_joiner.py
// (create_station_delay_map, find_route_segments_for_stations), rewritten
// onto the Go domain types the Day Loader produces rather than re-reading
// bulk files itself — the Joiner never talks to the object store, only to
// already-decoded types.Observation/types.RouteGraph values.
package joiner

import (
	"sort"

	"github.com/mav-dashboard/harvester/internal/types"
)

// Summarize builds one PairDaySummary per StationPair present in
// observations, restricted to strictly positive leg delays. Pairs with no
// strictly-positive delay still get a summary with
// MaxDelayMinutes=0, MeanDelayMinutes=0, SampleCount=0 — the absence of
// delay is itself a fact about the pair, not an omission.
func Summarize(date string, observations []types.Observation) map[types.StationPair]types.PairDaySummary {
	values := make(map[types.StationPair][]int)
	order := make([]types.StationPair, 0)
	for _, obs := range observations {
		if _, seen := values[obs.Pair]; !seen {
			order = append(order, obs.Pair)
		}
		values[obs.Pair] = append(values[obs.Pair], obs.PositiveLegDelays()...)
	}

	summaries := make(map[types.StationPair]types.PairDaySummary, len(order))
	for _, pair := range order {
		summaries[pair] = types.NewPairDaySummary(pair, date, values[pair])
	}
	return summaries
}

// coverage is one (Pattern, start, end) match: pattern orders origin before
// destination at these stop indices — the earliest start before the
// earliest later end.
type coverage struct {
	pattern  types.Pattern
	startIdx int
	endIdx   int
}

// findCoverage returns every (pattern, start_idx, end_idx) pair in graph
// where origin occurs at start_idx and destination occurs later, at
// end_idx, honoring the Pattern-native order only (no reverse traversal). A
// pair covered by more than one Pattern yields one coverage entry per
// covering Pattern; within one Pattern where origin recurs, the earliest
// start paired with the earliest later end is taken — the first
// (start_idx, end_idx) with end_idx > start_idx, scanned in ascending
// start/end order.
func findCoverage(graph types.RouteGraph, origin, destination string) []coverage {
	var out []coverage
	for _, pattern := range graph.Patterns {
		if len(pattern.Stops) < 2 {
			continue
		}
		ids := pattern.StationIDs()

		startIdx, endIdx := earliestPair(ids, origin, destination)
		if startIdx == -1 || endIdx == -1 {
			continue
		}
		out = append(out, coverage{pattern: pattern, startIdx: startIdx, endIdx: endIdx})
	}
	return out
}

// earliestPair finds, among every (i, j) with ids[i]==origin, ids[j]==dest,
// j>i, the pair with the smallest i, then the smallest j for that i: the
// earliest occurrence before the earliest later occurrence, exactly one
// deterministic match per pattern per pair.
func earliestPair(ids []string, origin, destination string) (int, int) {
	for i, id := range ids {
		if id != origin {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			if ids[j] == destination {
				return i, j
			}
		}
	}
	return -1, -1
}

// segmentAccumulator collects the per-contribution means needed to compute
// an unweighted mean-of-means, plus the running max, for one segment.
type segmentAccumulator struct {
	fromStation, toStation string
	maxDelay               int
	means                  []float64
	weightedSum            float64
	totalSamples           int
}

// Join projects every PairDaySummary onto graph's segments, producing one
// SegmentDelay per (pattern, segment index) that at least one covering pair
// contributed to. Output order is deterministic — sorted by PatternID, then
// segment index — sidestepping Go's unordered map iteration by returning a
// sorted slice instead.
func Join(summaries map[types.StationPair]types.PairDaySummary, graph types.RouteGraph) []types.SegmentDelay {
	acc := make(map[types.SegmentKey]*segmentAccumulator)
	var keyOrder []types.SegmentKey

	for pair, summary := range summaries {
		for _, cov := range findCoverage(graph, pair.Origin, pair.Destination) {
			for i := cov.startIdx; i < cov.endIdx; i++ {
				key := types.SegmentKey{PatternID: cov.pattern.ID, Index: i}
				a, ok := acc[key]
				if !ok {
					a = &segmentAccumulator{
						fromStation: cov.pattern.Stops[i].StationID,
						toStation:   cov.pattern.Stops[i+1].StationID,
					}
					acc[key] = a
					keyOrder = append(keyOrder, key)
				}
				if summary.MaxDelayMinutes > a.maxDelay {
					a.maxDelay = summary.MaxDelayMinutes
				}
				a.means = append(a.means, summary.MeanDelayMinutes)
				a.weightedSum += summary.MeanDelayMinutes * float64(summary.SampleCount)
				a.totalSamples += summary.SampleCount
			}
		}
	}

	sort.Slice(keyOrder, func(i, j int) bool {
		if keyOrder[i].PatternID != keyOrder[j].PatternID {
			return keyOrder[i].PatternID < keyOrder[j].PatternID
		}
		return keyOrder[i].Index < keyOrder[j].Index
	})

	out := make([]types.SegmentDelay, 0, len(keyOrder))
	for _, key := range keyOrder {
		a := acc[key]
		out = append(out, types.SegmentDelay{
			Key:                      key,
			FromStation:              a.fromStation,
			ToStation:                a.toStation,
			MaxDelayMinutes:          a.maxDelay,
			MeanDelayMinutes:         unweightedMean(a.means),
			WeightedMeanDelayMinutes: weightedMean(a.weightedSum, a.totalSamples),
			ContributionCount:        len(a.means),
			TotalSamples:             a.totalSamples,
		})
	}
	return out
}

// unweightedMean reproduces the Python source's np.mean-over-per-route-
// averages behavior verbatim, including its statistical quirk of averaging
// already-averaged per-pair means rather than the underlying samples.
// Preserved here for compatibility, with WeightedMeanDelayMinutes exposed
// as the sound alternative.
func unweightedMean(means []float64) float64 {
	if len(means) == 0 {
		return 0
	}
	var sum float64
	for _, m := range means {
		sum += m
	}
	return sum / float64(len(means))
}

// weightedMean is the statistically sound alternative: each contributing
// PairDaySummary's mean weighted by its own SampleCount.
func weightedMean(weightedSum float64, totalSamples int) float64 {
	if totalSamples == 0 {
		return 0
	}
	return weightedSum / float64(totalSamples)
}
