// Package analytics computes derived, purely-numeric per-day tables: quick
// stats, delay/price histograms, top-N delayed/expensive routes, and a late
// trains breakdown. Grounded in
// original_source/map_generator_refactored/analytics/mav_analytics_library.py
// (MAVAnalytics.clean_and_describe_data, calculate_delay_histogram,
// calculate_price_histogram, get_mav_route_analysis_summary,
// get_top_most_delayed_trains, get_top_most_expensive_routes,
// get_late_trains_only_analysis) for field shape only; every statistic here
// is a flat loop over already-decoded types.Observation legs/itineraries,
// not a DataFrame pipeline.
package analytics

import (
	"sort"

	"github.com/mav-dashboard/harvester/internal/types"
)

// row is one flattened (itinerary, pair) observation used across every
// table below — the Go equivalent of one DataFrame row in the original.
type row struct {
	pair          types.StationPair
	delayMinutes  int
	priceMinor    int
	travelMinutes int
	transfers     int
	trainName     string
	isDelayed     bool
	isSigDelayed  bool
}

func flatten(observations []types.Observation) []row {
	var rows []row
	for _, obs := range observations {
		if !obs.Success {
			continue
		}
		for _, it := range obs.Itineraries {
			rows = append(rows, row{
				pair:          obs.Pair,
				delayMinutes:  it.OverallDelayMinutes,
				priceMinor:    it.PriceMinorUnits,
				travelMinutes: it.TravelTimeMinutes,
				transfers:     it.TransfersCount,
				trainName:     it.TrainName,
				isDelayed:     it.IsDelayed,
				isSigDelayed:  it.IsSignificantlyDelayed,
			})
		}
	}
	return rows
}

// QuickStats mirrors quick_stats.json.
type QuickStats struct {
	TotalRoutes         int     `json:"total_routes"`
	AverageTravelTime   float64 `json:"average_travel_time"`
	AverageDelay        float64 `json:"average_delay"`
	RoutesWithDelays    int     `json:"routes_with_delays"`
	RoutesWithDelaysPct float64 `json:"routes_with_delays_pct"`
	AveragePriceMinor   float64 `json:"average_price_minor_units"`
}

// ComputeQuickStats builds quick_stats.json from every itinerary across
// observations.
func ComputeQuickStats(observations []types.Observation) QuickStats {
	rows := flatten(observations)
	if len(rows) == 0 {
		return QuickStats{}
	}

	var sumTravel, sumDelay, sumPrice float64
	var delayedCount int
	for _, r := range rows {
		sumTravel += float64(r.travelMinutes)
		sumDelay += float64(r.delayMinutes)
		sumPrice += float64(r.priceMinor)
		if r.isDelayed {
			delayedCount++
		}
	}
	n := float64(len(rows))
	return QuickStats{
		TotalRoutes:         len(rows),
		AverageTravelTime:   sumTravel / n,
		AverageDelay:        sumDelay / n,
		RoutesWithDelays:    delayedCount,
		RoutesWithDelaysPct: float64(delayedCount) / n * 100,
		AveragePriceMinor:   sumPrice / n,
	}
}

// HistogramBucket is one bucket of delay_histogram.json / price_histogram.json.
type HistogramBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// delayBins mirrors the original's fixed bin edges.
var delayBins = []struct {
	label  string
	lo, hi int // hi exclusive; hi < 0 means unbounded
}{
	{"0-5", 0, 5}, {"5-10", 5, 10}, {"10-15", 10, 15}, {"15-20", 15, 20},
	{"20-25", 20, 25}, {"25-30", 25, 30}, {"30-35", 30, 35}, {"35-40", 35, 40},
	{"40-45", 40, 45}, {"45-50", 45, 50}, {"50+", 50, -1},
}

// ComputeDelayHistogram buckets every non-negative delay, skipping negative
// ones (an early or on-time arrival, not a delay to bucket).
func ComputeDelayHistogram(observations []types.Observation) []HistogramBucket {
	counts := make(map[string]int, len(delayBins))
	for _, r := range flatten(observations) {
		if r.delayMinutes < 0 {
			continue
		}
		counts[bucketFor(r.delayMinutes)]++
	}
	out := make([]HistogramBucket, len(delayBins))
	for i, b := range delayBins {
		out[i] = HistogramBucket{Bucket: b.label, Count: counts[b.label]}
	}
	return out
}

func bucketFor(delay int) string {
	for _, b := range delayBins {
		if b.hi < 0 {
			if delay >= b.lo {
				return b.label
			}
			continue
		}
		if delay >= b.lo && delay < b.hi {
			return b.label
		}
	}
	return delayBins[len(delayBins)-1].label
}

// priceBinsMinor mirrors calculate_price_histogram's bins, expressed in
// minor currency units.
var priceBinsMinor = []struct {
	label  string
	lo, hi int
}{
	{"0-2000", 0, 2000}, {"2000-4000", 2000, 4000}, {"4000-6000", 4000, 6000},
	{"6000-8000", 6000, 8000}, {"8000-10000", 8000, 10000}, {"10000+", 10000, -1},
}

// ComputePriceHistogram buckets every itinerary's price.
func ComputePriceHistogram(observations []types.Observation) []HistogramBucket {
	counts := make(map[string]int, len(priceBinsMinor))
	for _, r := range flatten(observations) {
		counts[priceBucketFor(r.priceMinor)]++
	}
	out := make([]HistogramBucket, len(priceBinsMinor))
	for i, b := range priceBinsMinor {
		out[i] = HistogramBucket{Bucket: b.label, Count: counts[b.label]}
	}
	return out
}

func priceBucketFor(price int) string {
	for _, b := range priceBinsMinor {
		if b.hi < 0 {
			if price >= b.lo {
				return b.label
			}
			continue
		}
		if price >= b.lo && price < b.hi {
			return b.label
		}
	}
	return priceBinsMinor[len(priceBinsMinor)-1].label
}

// RouteAnalysisSummary mirrors route_analysis_summary.json.
type RouteAnalysisSummary struct {
	TotalRoutesAnalyzed  int     `json:"total_routes_analyzed"`
	UniqueStationPairs   int     `json:"unique_station_pairs"`
	OnTimePct            float64 `json:"on_time_pct"`
	DelayedPct           float64 `json:"delayed_pct"`
	SignificantlyDelayed float64 `json:"significantly_delayed_pct"`
	AverageDelayMinutes  float64 `json:"average_delay_min"`
	MaximumDelayMinutes  int     `json:"maximum_delay_min"`
	AverageTicketPrice   float64 `json:"average_ticket_price_minor_units"`
	MostExpensiveRoute   int     `json:"most_expensive_route_minor_units"`
	AverageTravelMinutes float64 `json:"average_travel_time_min"`
	ShortestRouteMinutes int     `json:"shortest_route_min"`
	LongestRouteMinutes  int     `json:"longest_route_min"`
	AverageTransfers     float64 `json:"average_transfers"`
}

// ComputeRouteAnalysisSummary builds route_analysis_summary.json.
func ComputeRouteAnalysisSummary(observations []types.Observation) RouteAnalysisSummary {
	rows := flatten(observations)
	var s RouteAnalysisSummary
	if len(rows) == 0 {
		return s
	}

	pairs := make(map[types.StationPair]struct{})
	var onTime, delayed, sig int
	var sumDelay, sumTravel, sumTransfers float64
	maxDelay := rows[0].delayMinutes
	shortest, longest := rows[0].travelMinutes, rows[0].travelMinutes
	var sumPrice float64
	var paidCount int
	maxPrice := 0

	for _, r := range rows {
		pairs[r.pair] = struct{}{}
		if r.delayMinutes == 0 {
			onTime++
		}
		if r.delayMinutes > 0 {
			delayed++
		}
		if r.delayMinutes > 10 {
			sig++
		}
		sumDelay += float64(r.delayMinutes)
		if r.delayMinutes > maxDelay {
			maxDelay = r.delayMinutes
		}
		sumTravel += float64(r.travelMinutes)
		if r.travelMinutes < shortest {
			shortest = r.travelMinutes
		}
		if r.travelMinutes > longest {
			longest = r.travelMinutes
		}
		sumTransfers += float64(r.transfers)
		if r.priceMinor > maxPrice {
			maxPrice = r.priceMinor
		}
		if r.priceMinor > 0 {
			sumPrice += float64(r.priceMinor)
			paidCount++
		}
	}

	n := float64(len(rows))
	s.TotalRoutesAnalyzed = len(rows)
	s.UniqueStationPairs = len(pairs)
	s.OnTimePct = float64(onTime) / n * 100
	s.DelayedPct = float64(delayed) / n * 100
	s.SignificantlyDelayed = float64(sig) / n * 100
	s.AverageDelayMinutes = sumDelay / n
	s.MaximumDelayMinutes = maxDelay
	s.MostExpensiveRoute = maxPrice
	if paidCount > 0 {
		s.AverageTicketPrice = sumPrice / float64(paidCount)
	}
	s.AverageTravelMinutes = sumTravel / n
	s.ShortestRouteMinutes = shortest
	s.LongestRouteMinutes = longest
	s.AverageTransfers = sumTransfers / n
	return s
}

// DelayedRoute is one entry of delayed_routes.json.
type DelayedRoute struct {
	DelayMinutes int    `json:"delay_min"`
	Origin       string `json:"start_station"`
	Destination  string `json:"end_station"`
	TrainName    string `json:"train_name"`
}

// TopDelayedRoutes returns the topN itineraries by overall delay,
// descending.
func TopDelayedRoutes(observations []types.Observation, topN int) []DelayedRoute {
	rows := flatten(observations)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].delayMinutes > rows[j].delayMinutes })
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	out := make([]DelayedRoute, len(rows))
	for i, r := range rows {
		out[i] = DelayedRoute{DelayMinutes: r.delayMinutes, Origin: r.pair.Origin, Destination: r.pair.Destination, TrainName: r.trainName}
	}
	return out
}

// ExpensiveRoute is one entry of expensive_routes.json.
type ExpensiveRoute struct {
	PriceMinorUnits int    `json:"price_minor_units"`
	Origin          string `json:"start_station"`
	Destination     string `json:"end_station"`
	TrainName       string `json:"train_name"`
}

// TopExpensiveRoutes returns the topN itineraries by price, descending.
func TopExpensiveRoutes(observations []types.Observation, topN int) []ExpensiveRoute {
	rows := flatten(observations)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].priceMinor > rows[j].priceMinor })
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	out := make([]ExpensiveRoute, len(rows))
	for i, r := range rows {
		out[i] = ExpensiveRoute{PriceMinorUnits: r.priceMinor, Origin: r.pair.Origin, Destination: r.pair.Destination, TrainName: r.trainName}
	}
	return out
}

// lateThresholdMinutes mirrors get_late_trains_only_analysis's default
// late_threshold of 20 minutes.
const lateThresholdMinutes = 20

// LateTrainsAnalysis mirrors late_trains_analysis.json.
type LateTrainsAnalysis struct {
	LateTrainDefinitionMinutes int     `json:"late_train_definition_min"`
	LateTrainsCount            int     `json:"late_trains_count"`
	LateTrainsPctOfTotal       float64 `json:"late_trains_pct_of_total"`
	AverageDelayMinutes        float64 `json:"average_delay_min"`
	MaxDelayMinutes            int     `json:"max_delay_min"`
}

// ComputeLateTrainsAnalysis builds late_trains_analysis.json.
func ComputeLateTrainsAnalysis(observations []types.Observation) LateTrainsAnalysis {
	rows := flatten(observations)
	result := LateTrainsAnalysis{LateTrainDefinitionMinutes: lateThresholdMinutes}
	if len(rows) == 0 {
		return result
	}

	var late []row
	for _, r := range rows {
		if r.delayMinutes > lateThresholdMinutes {
			late = append(late, r)
		}
	}
	result.LateTrainsCount = len(late)
	result.LateTrainsPctOfTotal = float64(len(late)) / float64(len(rows)) * 100
	if len(late) == 0 {
		return result
	}

	var sum float64
	maxDelay := late[0].delayMinutes
	for _, r := range late {
		sum += float64(r.delayMinutes)
		if r.delayMinutes > maxDelay {
			maxDelay = r.delayMinutes
		}
	}
	result.AverageDelayMinutes = sum / float64(len(late))
	result.MaxDelayMinutes = maxDelay
	return result
}
