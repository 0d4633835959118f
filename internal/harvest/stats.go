package harvest

import (
	"sync"
	"time"

	"github.com/mav-dashboard/harvester/internal/types"
)

// PairResult records the terminal state of one station-pair attempt, used
// both for the progress callback and the final RunStats.
type PairResult struct {
	Pair       types.StationPair
	State      PairState
	Err        error
	BlobKey    string
	BlobBytes  int
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStats is a point-in-time snapshot of a harvest run's progress. It is
// safe to read concurrently with an in-progress run via Pool.Stats().
type RunStats struct {
	TotalPairs   int
	Completed    int
	Succeeded    int
	Failed       int
	BytesWritten int64
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Done reports whether every pair has reached a terminal state.
func (s RunStats) Done() bool {
	return s.Completed >= s.TotalPairs
}

// ProgressFunc is invoked when a pair becomes in-flight, after every
// ProgressInterval-th pair completion, and once more when the run ends. It
// must return quickly; the pool does not wait on it beyond the call itself.
type ProgressFunc func(stats RunStats, result PairResult)

type statsTracker struct {
	mu    sync.Mutex
	stats RunStats
}

func newStatsTracker(totalPairs int) *statsTracker {
	return &statsTracker{stats: RunStats{TotalPairs: totalPairs, StartedAt: time.Now()}}
}

func (t *statsTracker) recordTerminal(result PairResult, bytesWritten int64) RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Completed++
	switch result.State {
	case PairSucceeded:
		t.stats.Succeeded++
		t.stats.BytesWritten += bytesWritten
	case PairFailed:
		t.stats.Failed++
	}
	if t.stats.Completed >= t.stats.TotalPairs {
		t.stats.FinishedAt = time.Now()
	}
	return t.stats
}

func (t *statsTracker) snapshot() RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
