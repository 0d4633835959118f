package analytics

import (
	"testing"

	"github.com/mav-dashboard/harvester/internal/types"
)

func sampleObservations() []types.Observation {
	pairAB := types.StationPair{Origin: "A", Destination: "B"}
	pairAC := types.StationPair{Origin: "A", Destination: "C"}
	return []types.Observation{
		{
			Pair: pairAB, Success: true,
			Itineraries: []types.Itinerary{
				{TrainName: "IC1", OverallDelayMinutes: 12, PriceMinorUnits: 3000, TravelTimeMinutes: 60, IsDelayed: true},
				{TrainName: "IC2", OverallDelayMinutes: 0, PriceMinorUnits: 1500, TravelTimeMinutes: 45},
			},
		},
		{
			Pair: pairAC, Success: true,
			Itineraries: []types.Itinerary{
				{TrainName: "IC3", OverallDelayMinutes: 25, PriceMinorUnits: 9000, TravelTimeMinutes: 120, IsDelayed: true},
			},
		},
		{Pair: pairAC, Success: false},
	}
}

func TestComputeQuickStats(t *testing.T) {
	stats := ComputeQuickStats(sampleObservations())
	if stats.TotalRoutes != 3 {
		t.Fatalf("TotalRoutes = %d, want 3", stats.TotalRoutes)
	}
	if stats.RoutesWithDelays != 2 {
		t.Fatalf("RoutesWithDelays = %d, want 2", stats.RoutesWithDelays)
	}
}

func TestComputeDelayHistogramBucketsNonNegativeOnly(t *testing.T) {
	buckets := ComputeDelayHistogram(sampleObservations())
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total != 3 {
		t.Fatalf("total bucketed = %d, want 3", total)
	}
}

func TestTopDelayedRoutesOrdersDescending(t *testing.T) {
	top := TopDelayedRoutes(sampleObservations(), 2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].DelayMinutes < top[1].DelayMinutes {
		t.Fatalf("not descending: %+v", top)
	}
}

func TestComputeLateTrainsAnalysis(t *testing.T) {
	result := ComputeLateTrainsAnalysis(sampleObservations())
	if result.LateTrainsCount != 1 {
		t.Fatalf("LateTrainsCount = %d, want 1", result.LateTrainsCount)
	}
	if result.MaxDelayMinutes != 25 {
		t.Fatalf("MaxDelayMinutes = %d, want 25", result.MaxDelayMinutes)
	}
}

func TestEmptyObservationsYieldZeroedStats(t *testing.T) {
	stats := ComputeQuickStats(nil)
	if stats.TotalRoutes != 0 {
		t.Fatalf("expected zeroed QuickStats for no observations, got %+v", stats)
	}
}
