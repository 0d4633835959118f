package types

// PairDaySummary is the per-(pair, date) delay aggregate derived by the
// Delay Joiner from every Observation retained for that pair.
type PairDaySummary struct {
	Pair             StationPair
	Date             string
	MaxDelayMinutes  int
	MeanDelayMinutes float64
	SampleCount      int
}

// NewPairDaySummary builds a summary from the strictly-positive leg delays
// collected for pair on date. max = max(values ∪ {0}); mean = 0 when values
// is empty; sample_count = len(values).
func NewPairDaySummary(pair StationPair, date string, values []int) PairDaySummary {
	s := PairDaySummary{Pair: pair, Date: date, SampleCount: len(values)}
	if len(values) == 0 {
		return s
	}
	sum := 0
	max := values[0]
	for _, v := range values {
		sum += v
		if v > max {
			max = v
		}
	}
	s.MaxDelayMinutes = max
	s.MeanDelayMinutes = float64(sum) / float64(len(values))
	return s
}
