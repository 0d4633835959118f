package orchestrator

import (
	"errors"

	"github.com/mav-dashboard/harvester/internal/loader"
)

// ErrRunConflict is returned by RunDaily when a run is already in
// Starting/Running phase: a second RunDaily call while one is active
// returns a conflict signal without side effects.
var ErrRunConflict = errors.New("orchestrator: a run is already in progress")

// ErrNoDataAvailable is the Day Loader's look-back-exhausted sentinel,
// re-exported so RunDaily callers can match it without importing loader.
var ErrNoDataAvailable = loader.ErrNoDataAvailable
