package orchestrator

import (
	"time"

	"github.com/mav-dashboard/harvester/internal/harvest"
	"github.com/mav-dashboard/harvester/internal/publish"
)

// RunStatus is a point-in-time, read-only snapshot of the orchestrator's
// current or most recent run. Status() returns a copy taken under a
// read-lock and never touches the object store or network — status must
// not block on I/O.
type RunStatus struct {
	Phase     RunPhase
	Date      string
	StartedAt time.Time
	EndedAt   *time.Time
	Processed int
	Total     int
	LastError string
	Harvest   harvest.RunStats
	Publish   publish.BatchStats
	Artifacts []string
}

// RunReport is RunDaily's return value: the terminal RunStatus plus nothing
// further, since every field a caller needs is already there. Kept as a
// distinct name for callers that only ever see completed runs (the CLI's
// run-daily command).
type RunReport = RunStatus
