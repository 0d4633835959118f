// Package harvest implements the harvest worker pool: a bounded set of
// goroutines pulling station pairs off a FIFO queue, calling the upstream
// offer-request API through internal/upstream with randomized jitter
// between attempts, and writing one Observation blob per pair to an object
// store adapter. Grounded in the virtual-user engine's worker/pacing split
// (internal/vu) and the retry HTTP client (internal/worker), generalized
// from synthetic load generation to a single bounded harvest run.
package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/types"
	"github.com/mav-dashboard/harvester/internal/upstream"
)

const blobTimeLayout = "20060102_150405"

// Config configures one harvest run. The per-HTTP-call retry policy lives
// on the upstream.Client the caller constructs, not here: retries are a
// property of one call, jitter a property of the run.
type Config struct {
	Concurrency      int
	BaseDelay        time.Duration
	MaxPairs         int
	ProgressInterval int
}

// DefaultConfig matches the original scraper's single-worker posture: one
// worker, no pair cap, no progress callback cadence (callers opt in via
// Config.ProgressInterval).
func DefaultConfig() Config {
	return Config{Concurrency: 1}
}

// MetricsRecorder receives per-pair instrumentation as pairs reach a
// terminal state. Implemented by obs.Metrics; nil-able so a pool without
// an observability stack records nothing.
type MetricsRecorder interface {
	RecordPair(ctx context.Context, outcome string)
	RecordCallDuration(ctx context.Context, ms float64)
}

// Pool runs one harvest over a fixed set of station pairs for a single
// travel date, writing Observations to store keyed by date partition.
type Pool struct {
	cfg    Config
	client *upstream.Client
	store  osa.Store
	logger *slog.Logger

	onProgress ProgressFunc
	metrics    MetricsRecorder

	tracker *statsTracker
}

// NewPool builds a Pool. client and store are shared across the whole run;
// the caller owns their lifecycle.
func NewPool(cfg Config, client *upstream.Client, store osa.Store, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{cfg: cfg, client: client, store: store, logger: logger}
}

// OnProgress registers a callback invoked once per pair as it transitions
// Pending -> InFlight (right before the worker issues its HTTP call), again
// every Config.ProgressInterval completed pairs as pairs reach a terminal
// state, and once more at the end of the run. Must be set before Run.
func (p *Pool) OnProgress(fn ProgressFunc) {
	p.onProgress = fn
}

// Instrument registers an optional metrics recorder invoked once per pair
// as it reaches a terminal state. Must be set before Run.
func (p *Pool) Instrument(rec MetricsRecorder) {
	p.metrics = rec
}

// Stats returns a snapshot of the current run's progress. Safe to call
// concurrently with Run; returns the zero value before Run starts.
func (p *Pool) Stats() RunStats {
	if p.tracker == nil {
		return RunStats{}
	}
	return p.tracker.snapshot()
}

// Run harvests every pair in pairs (capped at Config.MaxPairs, if positive)
// for travelDate, blocking until every pair reaches a terminal state or ctx
// is canceled. It never returns an error for individual pair failures —
// those are recorded in RunStats and reported through the progress
// callback; Run's error return is reserved for setup failures and context
// cancellation.
func (p *Pool) Run(ctx context.Context, pairs []types.StationPair, travelDate time.Time) (RunStats, error) {
	if p.cfg.MaxPairs > 0 && len(pairs) > p.cfg.MaxPairs {
		pairs = pairs[:p.cfg.MaxPairs]
	}
	if len(pairs) == 0 {
		return RunStats{}, nil
	}

	p.tracker = newStatsTracker(len(pairs))
	jitter := DefaultJitterPolicy(p.cfg.BaseDelay)

	queue := make(chan types.StationPair, len(pairs))
	for _, pair := range pairs {
		queue <- pair
	}
	close(queue)

	concurrency := p.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID, queue, jitter, travelDate)
		}(w)
	}
	wg.Wait()

	// Always invoke the progress callback once more at completion,
	// mirroring the Incremental Publisher's own contract.
	if p.onProgress != nil {
		p.invokeProgress(p.tracker.snapshot(), PairResult{})
	}

	if err := ctx.Err(); err != nil {
		return p.tracker.snapshot(), err
	}
	return p.tracker.snapshot(), nil
}

func (p *Pool) runWorker(ctx context.Context, workerID int, queue <-chan types.StationPair, jitter JitterPolicy, travelDate time.Time) {
	for pair := range queue {
		if ctx.Err() != nil {
			return
		}

		p.markInFlight(pair)

		result := p.harvestPair(ctx, pair, travelDate, jitter)

		stats := p.tracker.recordTerminal(result, int64(result.BlobBytes))
		if p.metrics != nil {
			p.metrics.RecordPair(ctx, result.State.String())
			p.metrics.RecordCallDuration(ctx, float64(result.Duration.Microseconds())/1000)
		}

		interval := p.cfg.ProgressInterval
		if p.onProgress != nil && interval > 0 && stats.Completed%interval == 0 {
			p.invokeProgress(stats, result)
		}
	}
}

// markInFlight reports a pair's Pending -> InFlight transition to the
// progress callback, independent of the terminal-pair cadence: it fires
// exactly once per pair, right before the worker dequeuing it issues the
// HTTP call.
func (p *Pool) markInFlight(pair types.StationPair) {
	if p.onProgress == nil {
		return
	}
	p.invokeProgress(p.tracker.snapshot(), PairResult{Pair: pair, State: PairInFlight})
}

// invokeProgress calls the caller's progress callback, treating a panic as
// a non-fatal error: logged, never propagated.
func (p *Pool) invokeProgress(stats RunStats, result PairResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("harvest: progress callback panicked", "recovered", r)
		}
	}()
	p.onProgress(stats, result)
}

func (p *Pool) harvestPair(ctx context.Context, pair types.StationPair, travelDate time.Time, jitter JitterPolicy) PairResult {
	if err := jitter.sleep(ctx); err != nil {
		return p.failure(pair, time.Now(), err)
	}

	p.client.MaybeRotateUserAgent()

	start := time.Now()
	body, err := p.client.FetchRoutes(ctx, pair.Origin, pair.Destination, travelDate)
	if err != nil {
		return p.failure(pair, start, err)
	}

	itineraries, parseErr := upstream.ParseItineraries(body)
	if parseErr != nil {
		return p.failure(pair, start, parseErr)
	}

	// A failing attempt produces no blob at all; only a successful
	// fetch+parse reaches this point and is ever written.
	capturedAt := time.Now().UTC()
	obs := types.Observation{
		Pair:        pair,
		CapturedAt:  capturedAt,
		TravelDate:  travelDate.Format("2006-01-02"),
		Success:     true,
		Itineraries: itineraries,
	}

	key := blobKey(pair, capturedAt)
	payload, marshalErr := json.Marshal(obs)
	if marshalErr != nil {
		return p.failure(pair, start, marshalErr)
	}

	if putErr := p.store.Put(ctx, key, payload, "application/json"); putErr != nil {
		return p.failure(pair, start, putErr)
	}

	end := time.Now()
	p.logger.Info("harvest: pair attempt succeeded",
		"pair", pair.String(), "started_at", start, "ended_at", end,
		"duration", end.Sub(start), "key", key, "bytes", len(payload))
	return PairResult{
		Pair: pair, State: PairSucceeded, BlobKey: key, BlobBytes: len(payload),
		Duration: end.Sub(start), StartedAt: start, FinishedAt: end,
	}
}

// failure logs a pair-level failure with the per-call line the run's
// operators grep for (start/end instant, duration, pair, HTTP status when
// known, error kind) and builds the terminal PairResult.
func (p *Pool) failure(pair types.StationPair, start time.Time, err error) PairResult {
	end := time.Now()
	kind, status := classifyError(err)
	p.logger.Warn("harvest: pair attempt failed",
		"pair", pair.String(), "started_at", start, "ended_at", end,
		"duration", end.Sub(start), "http_status", status, "error_kind", kind, "err", err)
	return PairResult{
		Pair: pair, State: PairFailed, Err: err,
		Duration: end.Sub(start), StartedAt: start, FinishedAt: end,
	}
}

// classifyError maps err onto the error taxonomy name logged per attempt,
// plus the HTTP status when the upstream answered at all (0 otherwise).
func classifyError(err error) (string, int) {
	var rejection *upstream.UpstreamRejection
	if errors.As(err, &rejection) {
		return "upstream_rejection", rejection.StatusCode
	}
	var payloadErr *upstream.PayloadError
	if errors.As(err, &payloadErr) {
		return "payload_error", 0
	}
	var transportErr *upstream.TransportError
	if errors.As(err, &transportErr) {
		return "transport_error", 0
	}
	return "internal_error", 0
}

// blobKey builds the date-partitioned object key the Day Loader's filename
// regex expects: <date>/bulk_<origin>_<destination>_<timestamp>.json.
func blobKey(pair types.StationPair, capturedAt time.Time) string {
	date := capturedAt.Format("2006-01-02")
	return fmt.Sprintf("%s/bulk_%s_%s_%s.json", date, pair.Origin, pair.Destination, capturedAt.Format(blobTimeLayout))
}
