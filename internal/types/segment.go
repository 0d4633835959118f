package types

// SegmentKey identifies one station-to-station segment within one Pattern.
type SegmentKey struct {
	PatternID string
	Index     int // segment i spans Stops[i] -> Stops[i+1]
}

// SegmentDelay is the aggregated delay for one SegmentKey, built by the
// Delay Joiner from every PairDaySummary whose pair is covered by the
// pattern across this segment.
//
// MeanDelayMinutes is an unweighted average of the contributing summaries'
// means — this reproduces the source system's behavior verbatim, including
// its documented statistical inaccuracy. WeightedMeanDelayMinutes is the
// statistically sound alternative, weighting each contribution by its
// SampleCount, exposed under a distinct name.
type SegmentDelay struct {
	Key                      SegmentKey
	FromStation              string
	ToStation                string
	MaxDelayMinutes          int
	MeanDelayMinutes         float64
	WeightedMeanDelayMinutes float64
	ContributionCount        int
	TotalSamples             int
}
