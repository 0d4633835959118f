// Package loader implements the Day Loader: resolving which date's
// Observations to analyze (with a look-back when the requested date has no
// data yet), deduplicating to the latest blob per station pair, and
// tolerantly parsing each one. Grounded in
// original_source/map_generator_refactored/loaders/bulk_loader.py's
// load_all_bulk_files_from_gcs look-back loop and its lexicographic
// latest-timestamp-wins dedup by (start_station, end_station).
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/types"
)

// ErrNoDataAvailable is returned by LoadDay when no date within the
// look-back window holds any objects. List emptiness on a single date is
// absence, not an error; only exhausting the whole window is.
var ErrNoDataAvailable = errors.New("loader: no data available")

// blobNamePattern matches the harvest pool's key layout:
// bulk_<origin>_<destination>_<YYYYMMDD>_<HHMMSS>.json
var blobNamePattern = regexp.MustCompile(`^bulk_(.+)_(.+)_(\d{8}_\d{6})\.json$`)

// DefaultLookbackDays bounds how many days the loader walks backward before
// giving up, matching the original scraper's max_days_back default.
const DefaultLookbackDays = 8

// IsBulkBlobName reports whether filename matches the harvest pool's
// bulk_<origin>_<dest>_<timestamp>.json key layout. Derived-artifact
// writers use this to refuse ever emitting a name that could collide with
// an Observation blob under the same day prefix — the naming rule forbids
// the collision by construction.
func IsBulkBlobName(filename string) bool {
	return blobNamePattern.MatchString(filename)
}

// LoadResult is everything DL produces for one resolved date.
type LoadResult struct {
	Date         string // YYYY-MM-DD actually loaded, which may be earlier than requested
	Observations []types.Observation
	SkippedBlobs int // malformed blobs tolerated and skipped
}

// Loader resolves a day's worth of Observations from a Store.
type Loader struct {
	store osa.Store
	log   *slog.Logger
}

// NewLoader builds a Loader reading from store.
func NewLoader(store osa.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, log: logger}
}

// LoadDay resolves requestedDate (YYYY-MM-DD), walking backward day by day
// up to lookbackDays when the requested date has no blobs yet, then loads
// the latest blob per station pair for whichever date is found. Returns an
// error when no date in the look-back window has any data, or when listing
// the store fails.
func (l *Loader) LoadDay(ctx context.Context, requestedDate time.Time, lookbackDays int) (LoadResult, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	for daysBack := 0; daysBack < lookbackDays; daysBack++ {
		tryDate := requestedDate.AddDate(0, 0, -daysBack)
		dateStr := tryDate.Format("2006-01-02")

		keys, err := l.store.List(ctx, dateStr+"/")
		if err != nil {
			return LoadResult{}, fmt.Errorf("loader: listing %s: %w", dateStr, err)
		}
		if len(keys) == 0 {
			continue
		}

		bulkKeys := make([]string, 0, len(keys))
		for _, key := range keys {
			if !IsBulkBlobName(filenameOf(key)) {
				l.log.Warn("loader: skipping object that does not match the bulk blob pattern", "key", key)
				continue
			}
			bulkKeys = append(bulkKeys, key)
		}
		if len(bulkKeys) == 0 {
			continue
		}

		latest := latestPerPair(bulkKeys)
		l.log.Info("loader: resolved day", "requested", requestedDate.Format("2006-01-02"), "resolved", dateStr, "days_back", daysBack, "pairs", len(latest), "total_blobs", len(bulkKeys))

		result := LoadResult{Date: dateStr}
		for _, key := range latest {
			obs, err := l.loadOne(ctx, key)
			if err != nil {
				result.SkippedBlobs++
				l.log.Warn("loader: skipping unparseable blob", "key", key, "err", err)
				continue
			}
			result.Observations = append(result.Observations, obs)
		}
		return result, nil
	}

	return LoadResult{}, fmt.Errorf("%w in the last %d days from %s", ErrNoDataAvailable, lookbackDays, requestedDate.Format("2006-01-02"))
}

func (l *Loader) loadOne(ctx context.Context, key string) (types.Observation, error) {
	data, err := l.store.Get(ctx, key)
	if err != nil {
		return types.Observation{}, err
	}
	var obs types.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return types.Observation{}, err
	}
	return obs, nil
}

// pairKey identifies a station pair parsed out of a blob's filename.
type pairKey struct{ origin, destination string }

// latestPerPair filters keys (each "<date>/<filename>", already confirmed
// to match the bulk pattern) down to one key per (origin, destination),
// keeping the lexicographically greatest timestamp suffix — valid because
// the timestamp format YYYYMMDD_HHMMSS sorts lexicographically in
// chronological order.
func latestPerPair(keys []string) []string {
	latest := make(map[pairKey]string)
	latestTimestamp := make(map[pairKey]string)

	for _, key := range keys {
		m := blobNamePattern.FindStringSubmatch(filenameOf(key))
		if m == nil {
			continue
		}
		pk := pairKey{origin: m[1], destination: m[2]}
		timestamp := m[3]
		if cur, ok := latestTimestamp[pk]; !ok || timestamp > cur {
			latestTimestamp[pk] = timestamp
			latest[pk] = key
		}
	}

	out := make([]string, 0, len(latest))
	for _, key := range latest {
		out = append(out, key)
	}
	return out
}

// filenameOf strips the date-partition prefix off a key, leaving the bare
// object name.
func filenameOf(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
