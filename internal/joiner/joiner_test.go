package joiner

import (
	"testing"
	"time"

	"github.com/mav-dashboard/harvester/internal/types"
)

func pattern(id string, stationIDs ...string) types.Pattern {
	stops := make([]types.Stop, len(stationIDs))
	for i, id := range stationIDs {
		stops[i] = types.Stop{StationID: id}
	}
	return types.Pattern{ID: id, Stops: stops}
}

func obsWithLegDelay(pair types.StationPair, depDelay, arrDelay int) types.Observation {
	return types.Observation{
		Pair:       pair,
		CapturedAt: time.Now(),
		Success:    true,
		Itineraries: []types.Itinerary{{
			Legs: []types.Leg{{
				LegNumber:             1,
				DepartureDelayMinutes: depDelay,
				ArrivalDelayMinutes:   arrDelay,
			}},
		}},
	}
}

func TestSummarizeScenario1(t *testing.T) {
	pair := types.StationPair{Origin: "A", Destination: "B"}
	obs := []types.Observation{obsWithLegDelay(pair, 7, 3)}

	summaries := Summarize("2025-08-01", obs)
	s, ok := summaries[pair]
	if !ok {
		t.Fatal("expected a summary for (A,B)")
	}
	if s.MaxDelayMinutes != 7 {
		t.Errorf("Max = %d, want 7", s.MaxDelayMinutes)
	}
	if s.MeanDelayMinutes != 5 {
		t.Errorf("Mean = %v, want 5", s.MeanDelayMinutes)
	}
	if s.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", s.SampleCount)
	}
}

func TestSummarizeIgnoresNonPositiveDelays(t *testing.T) {
	pair := types.StationPair{Origin: "A", Destination: "B"}
	obs := []types.Observation{obsWithLegDelay(pair, 0, -3)}

	s := Summarize("2025-08-01", obs)[pair]
	if s.SampleCount != 0 || s.MeanDelayMinutes != 0 || s.MaxDelayMinutes != 0 {
		t.Fatalf("expected zeroed summary for non-positive delays, got %+v", s)
	}
}

// TestJoinTwoPatternsCoverSamePair covers Pattern P1=[A,X,B], Pattern
// P2=[A,Y,Z,B], and a PairDaySummary (A,B) with max=10, mean=10,
// sample_count=1. Every segment in both patterns should end up with
// max=10, and there is no cross-pattern aggregation.
func TestJoinTwoPatternsCoverSamePair(t *testing.T) {
	pair := types.StationPair{Origin: "A", Destination: "B"}
	summaries := map[types.StationPair]types.PairDaySummary{
		pair: {Pair: pair, Date: "2025-08-01", MaxDelayMinutes: 10, MeanDelayMinutes: 10, SampleCount: 1},
	}
	graph := types.RouteGraph{Patterns: []types.Pattern{
		pattern("P1", "A", "X", "B"),
		pattern("P2", "A", "Y", "Z", "B"),
	}}

	segments := Join(summaries, graph)
	if len(segments) != 5 { // 2 segments in P1 + 3 segments in P2
		t.Fatalf("len(segments) = %d, want 5", len(segments))
	}
	for _, seg := range segments {
		if seg.MaxDelayMinutes != 10 {
			t.Errorf("segment %+v MaxDelayMinutes = %d, want 10", seg.Key, seg.MaxDelayMinutes)
		}
		if seg.MeanDelayMinutes != 10 {
			t.Errorf("segment %+v MeanDelayMinutes = %v, want 10", seg.Key, seg.MeanDelayMinutes)
		}
	}
}

func TestJoinPairNotCoveredYieldsNoSegments(t *testing.T) {
	pair := types.StationPair{Origin: "A", Destination: "Z"}
	summaries := map[types.StationPair]types.PairDaySummary{
		pair: {Pair: pair, MaxDelayMinutes: 5, MeanDelayMinutes: 5, SampleCount: 1},
	}
	graph := types.RouteGraph{Patterns: []types.Pattern{pattern("P1", "A", "X", "B")}}

	if segments := Join(summaries, graph); len(segments) != 0 {
		t.Fatalf("expected no segments, got %v", segments)
	}
}

func TestJoinPatternWithFewerThanTwoStationsIgnored(t *testing.T) {
	pair := types.StationPair{Origin: "A", Destination: "B"}
	summaries := map[types.StationPair]types.PairDaySummary{
		pair: {Pair: pair, MaxDelayMinutes: 5, MeanDelayMinutes: 5, SampleCount: 1},
	}
	graph := types.RouteGraph{Patterns: []types.Pattern{pattern("P1", "A")}}

	if segments := Join(summaries, graph); len(segments) != 0 {
		t.Fatalf("expected no segments for a single-station pattern, got %v", segments)
	}
}

func TestJoinEarliestOccurrenceBeforeEarliestLaterDestination(t *testing.T) {
	// A Pattern in which origin occurs multiple times must match the
	// earliest occurrence before the earliest later destination. Pattern
	// = [A, C, A, B]: origin A recurs at indices 0 and 2; destination B
	// is at index 3. The earliest start (0) paired with the earliest
	// later end (3) must be chosen, covering segments 0->1, 1->2, 2->3 —
	// not just the shorter 2->3 span.
	pair := types.StationPair{Origin: "A", Destination: "B"}
	summaries := map[types.StationPair]types.PairDaySummary{
		pair: {Pair: pair, MaxDelayMinutes: 4, MeanDelayMinutes: 4, SampleCount: 1},
	}
	graph := types.RouteGraph{Patterns: []types.Pattern{pattern("P1", "A", "C", "A", "B")}}

	segments := Join(summaries, graph)
	if len(segments) != 3 {
		t.Fatalf("len(segments) = %d, want 3 (indices 0,1,2)", len(segments))
	}
	for _, seg := range segments {
		if seg.Key.Index < 0 || seg.Key.Index > 2 {
			t.Errorf("unexpected segment index %d", seg.Key.Index)
		}
	}
}

func TestJoinUnweightedMeanOfMeansAcrossMultiplePairs(t *testing.T) {
	// Two distinct pairs, (A,B) and (A,C), both cover segment A->B of
	// P1=[A,B,C] and contribute their PairDaySummary means unweighted: a
	// high-sample-count pair with a low mean must not dominate a
	// low-sample-count pair with a high mean.
	pairAB := types.StationPair{Origin: "A", Destination: "B"}
	pairAC := types.StationPair{Origin: "A", Destination: "C"}

	summaries := map[types.StationPair]types.PairDaySummary{
		pairAB: {Pair: pairAB, MaxDelayMinutes: 20, MeanDelayMinutes: 2, SampleCount: 100},
		pairAC: {Pair: pairAC, MaxDelayMinutes: 10, MeanDelayMinutes: 10, SampleCount: 1},
	}
	graph := types.RouteGraph{Patterns: []types.Pattern{pattern("P1", "A", "B", "C")}}
	segments := Join(summaries, graph)
	if len(segments) != 2 { // A->B (both pairs) and B->C (only A,C)
		t.Fatalf("len(segments) = %d, want 2", len(segments))
	}
	seg := segments[0] // index 0: A->B
	if seg.MeanDelayMinutes != 6 { // (2 + 10) / 2
		t.Errorf("MeanDelayMinutes = %v, want 6", seg.MeanDelayMinutes)
	}
	if seg.WeightedMeanDelayMinutes != 210.0/101 { // (2*100 + 10*1) / 101
		t.Errorf("WeightedMeanDelayMinutes = %v, want %v", seg.WeightedMeanDelayMinutes, 210.0/101)
	}
}
