// Package orchestrator implements the Harvest Orchestrator: the single
// entry point that drives one day's harvest end to end — running the
// harvest worker pool, mirroring fresh blobs to durable storage, resolving
// and loading the day's Observations, joining them against the route
// graph, computing the derived analytics tables, rendering the delay
// maps, and publishing every derived artifact under its fixed name. It
// owns the only piece of run-time state in the module: a single RunPhase
// guarded by a mutex, so at most one run is ever active. Grounded in the
// internal/controlplane/runmanager package for the state-machine and
// mutex-guarded-snapshot shape, simplified from a multi-run registry down
// to one run at a time; run identifiers use github.com/google/uuid, the
// same dependency used for run/execution ids elsewhere in the corpus.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/mav-dashboard/harvester/internal/analytics"
	"github.com/mav-dashboard/harvester/internal/harvest"
	"github.com/mav-dashboard/harvester/internal/joiner"
	"github.com/mav-dashboard/harvester/internal/loader"
	"github.com/mav-dashboard/harvester/internal/mapgen"
	"github.com/mav-dashboard/harvester/internal/obs"
	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/publish"
	"github.com/mav-dashboard/harvester/internal/routegraph"
	"github.com/mav-dashboard/harvester/internal/types"
)

// Deps wires together every collaborator one RunDaily call touches. All
// fields are required except Routes (nil skips route-graph joining and
// map rendering entirely — routegraph ingestion is an optional external
// collaborator the orchestrator never hard-depends on), Metrics, and
// Tracer (nil disables publish-error instruments and the per-run span).
type Deps struct {
	Harvest   *harvest.Pool
	Publisher *publish.Publisher
	Loader    *loader.Loader
	Routes    routegraph.Source
	Artifacts osa.Store // day-partitioned store derived tables and maps are written to
	Logger    *slog.Logger
	Metrics   *obs.Metrics
	Tracer    *obs.Tracer
}

// Orchestrator drives one harvest run at a time.
type Orchestrator struct {
	deps Deps

	mu     sync.RWMutex
	status RunStatus
	phase  RunPhase
}

// New builds an Orchestrator starting in PhaseIdle.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps, phase: PhaseIdle, status: RunStatus{Phase: PhaseIdle}}
}

// RunRequest parameterizes one RunDaily call.
type RunRequest struct {
	TravelDate   time.Time
	Pairs        []types.StationPair
	LookbackDays int // 0 uses loader.DefaultLookbackDays

	// DisableUpload mirrors the CLI's `test` mode, which disables upload.
	// When set, RunDaily exercises only the harvest call path against
	// local storage and returns once harvesting finishes — publishing,
	// day-loading, joining, analytics and map rendering all require
	// durable storage to actually hold the day's blobs, so they are
	// skipped rather than run against an empty upload.
	DisableUpload bool
}

// Status returns a snapshot of the current or most recent run. It only
// reads the mutex-guarded state and never touches the object store or
// network.
func (o *Orchestrator) Status() RunStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// RunDaily executes one full harvest-to-artifacts cycle for req. It
// returns ErrRunConflict without any side effect if a run is already
// Starting or Running.
func (o *Orchestrator) RunDaily(ctx context.Context, req RunRequest) (RunReport, error) {
	runID := uuid.NewString()
	if err := o.begin(req); err != nil {
		return RunStatus{}, err
	}
	o.deps.Logger.Info("orchestrator: run starting", "run_id", runID, "travel_date", req.TravelDate.Format("2006-01-02"), "pairs", len(req.Pairs))

	var span trace.Span
	if o.deps.Tracer != nil {
		ctx, span = o.deps.Tracer.StartRunSpan(ctx, runID, req.TravelDate.Format("2006-01-02"))
		defer span.End()
	}

	o.transition(PhaseRunning)
	report, err := o.run(ctx, req)
	if err != nil {
		o.fail(err)
		if span != nil {
			span.RecordError(err)
		}
		o.deps.Logger.Error("orchestrator: run failed", "run_id", runID, "err", err)
		return o.Status(), err
	}

	o.complete(report)
	o.deps.Logger.Info("orchestrator: run completed", "run_id", runID, "processed", report.Processed, "total", report.Total)
	return o.Status(), nil
}

// begin validates the conflict rule and moves Idle/Completed/Failed ->
// Starting, resetting the status snapshot for the new run.
func (o *Orchestrator) begin(req RunRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !CanTransition(o.phase, PhaseStarting) {
		return ErrRunConflict
	}
	o.phase = PhaseStarting
	o.status = RunStatus{
		Phase:     PhaseStarting,
		Date:      req.TravelDate.Format("2006-01-02"),
		StartedAt: time.Now(),
		Total:     len(req.Pairs),
	}
	return nil
}

func (o *Orchestrator) transition(to RunPhase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if CanTransition(o.phase, to) {
		o.phase = to
		o.status.Phase = to
	}
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	o.phase = PhaseFailed
	o.status.Phase = PhaseFailed
	o.status.EndedAt = &now
	o.status.LastError = err.Error()
}

func (o *Orchestrator) complete(report RunReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	o.phase = PhaseCompleted
	report.Phase = PhaseCompleted
	report.EndedAt = &now
	o.status = report
}

// run performs the actual harvest-publish-load-join-analyze-render-publish
// pipeline, independent of the phase bookkeeping above.
func (o *Orchestrator) run(ctx context.Context, req RunRequest) (RunReport, error) {
	report := RunStatus{Date: req.TravelDate.Format("2006-01-02"), Total: len(req.Pairs), StartedAt: time.Now()}
	dayPrefix := report.Date + "/"

	// The publisher is invoked from the harvest pool's progress callback
	// during the run and exactly once more below once the run finishes. A
	// batch failure here is logged and absorbed, not propagated: the next
	// invocation (or the final one) re-attempts every file because the
	// store's Put is idempotent by key.
	o.deps.Harvest.OnProgress(func(stats harvest.RunStats, result harvest.PairResult) {
		o.mu.Lock()
		o.status.Processed = stats.Completed
		o.status.Harvest = stats
		o.mu.Unlock()

		// The pool also reports Pending -> InFlight transitions through this
		// callback; only terminal notifications carry the every-K-completed
		// cadence an incremental publish is keyed to.
		terminal := result.State == harvest.PairSucceeded || result.State == harvest.PairFailed
		if req.DisableUpload || !terminal {
			return
		}
		batch, err := o.deps.Publisher.Publish(ctx, dayPrefix)
		if err != nil {
			o.deps.Logger.Warn("orchestrator: incremental publish failed", "err", err)
			return
		}
		o.recordPublishErrors(ctx, batch)
	})

	harvestStats, err := o.deps.Harvest.Run(ctx, req.Pairs, req.TravelDate)
	if err != nil {
		report.Harvest = harvestStats
		report.Processed = harvestStats.Completed
		if !req.DisableUpload {
			o.bestEffortPublish(dayPrefix)
		}
		return report, fmt.Errorf("orchestrator: harvest run: %w", err)
	}
	report.Harvest = harvestStats
	report.Processed = harvestStats.Completed

	if req.DisableUpload {
		return report, nil
	}

	publishStats, err := o.deps.Publisher.Publish(ctx, dayPrefix)
	if err != nil {
		return report, fmt.Errorf("orchestrator: publishing blobs: %w", err)
	}
	o.recordPublishErrors(ctx, publishStats)
	report.Publish = publishStats

	result, err := o.deps.Loader.LoadDay(ctx, req.TravelDate, req.LookbackDays)
	if err != nil {
		return report, fmt.Errorf("orchestrator: loading day: %w", err)
	}
	report.Date = result.Date

	artifacts, err := o.writeAnalytics(ctx, result)
	if err != nil {
		return report, err
	}
	report.Artifacts = artifacts

	if o.deps.Routes != nil {
		mapArtifacts, err := o.writeMaps(ctx, result)
		if err != nil {
			return report, err
		}
		report.Artifacts = append(report.Artifacts, mapArtifacts...)
	}

	return report, nil
}

// recordPublishErrors feeds one batch's failure count to the metrics
// stack, when one is wired.
func (o *Orchestrator) recordPublishErrors(ctx context.Context, batch publish.BatchStats) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordPublishErrors(ctx, int64(batch.Errors))
	}
}

// bestEffortPublish mirrors whatever local blobs already exist under
// dayPrefix to durable storage on a short-lived context of its own, rather
// than the run's ctx: a harvest run that ends in cancellation or error must
// still get its final incremental-publish pass, and reusing the already
// canceled/expired ctx would make that pass a guaranteed no-op.
func (o *Orchestrator) bestEffortPublish(dayPrefix string) {
	publishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := o.deps.Publisher.Publish(publishCtx, dayPrefix); err != nil {
		o.deps.Logger.Warn("orchestrator: best-effort publish after harvest failure failed", "err", err)
	}
}

// writeAnalytics computes every fixed-vocabulary analytic table from
// result's Observations and publishes each to the artifact store.
func (o *Orchestrator) writeAnalytics(ctx context.Context, result loader.LoadResult) ([]string, error) {
	tables := map[string]any{
		artifactQuickStats:           analytics.ComputeQuickStats(result.Observations),
		artifactDelayHistogram:       analytics.ComputeDelayHistogram(result.Observations),
		artifactPriceHistogram:       analytics.ComputePriceHistogram(result.Observations),
		artifactRouteAnalysisSummary: analytics.ComputeRouteAnalysisSummary(result.Observations),
		artifactDelayedRoutes:        analytics.TopDelayedRoutes(result.Observations, topRoutesLimit),
		artifactExpensiveRoutes:      analytics.TopExpensiveRoutes(result.Observations, topRoutesLimit),
		artifactLateTrainsAnalysis:   analytics.ComputeLateTrainsAnalysis(result.Observations),
	}

	var written []string
	for name, table := range tables {
		filename := name + ".json"
		if loader.IsBulkBlobName(filename) {
			return written, fmt.Errorf("orchestrator: refusing to write artifact %q: collides with the harvest blob naming pattern", filename)
		}
		key := result.Date + "/" + filename
		payload, err := json.Marshal(table)
		if err != nil {
			return written, fmt.Errorf("orchestrator: marshaling %s: %w", name, err)
		}
		if err := o.deps.Artifacts.Put(ctx, key, payload, "application/json"); err != nil {
			return written, fmt.Errorf("orchestrator: writing %s: %w", name, err)
		}
		written = append(written, key)
	}
	return written, nil
}

// writeMaps joins result's Observations against the route graph and
// renders/publishes both fixed-vocabulary map artifacts.
func (o *Orchestrator) writeMaps(ctx context.Context, result loader.LoadResult) ([]string, error) {
	graph, err := o.deps.Routes.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading route graph: %w", err)
	}

	summaries := joiner.Summarize(result.Date, result.Observations)
	segments := joiner.Join(summaries, graph)

	renders := []struct {
		name   string
		render func([]types.SegmentDelay, types.RouteGraph) ([]byte, error)
	}{
		{mapDelayAware, mapgen.RenderDelayAwareMap},
		{mapMaxDelay, mapgen.RenderMaxDelayMap},
	}

	var written []string
	for _, r := range renders {
		html, err := r.render(segments, graph)
		if err != nil {
			return written, fmt.Errorf("orchestrator: rendering %s: %w", r.name, err)
		}
		key := fmt.Sprintf("%s/%s/%s.html", result.Date, mapsDirectory, r.name)
		if err := o.deps.Artifacts.Put(ctx, key, html, "text/html"); err != nil {
			return written, fmt.Errorf("orchestrator: writing %s: %w", r.name, err)
		}
		written = append(written, key)
	}
	return written, nil
}
