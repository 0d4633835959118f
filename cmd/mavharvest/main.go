// Command mavharvest is the thin CLI collaborator that wires the
// harvester's components together and drives one invocation of the
// Harvest Orchestrator. Grounded in cmd/worker/main.go: the flag package
// for configuration, plain fmt.Fprintf(os.Stderr, ...) plus os.Exit for
// error reporting, and os/signal + syscall for graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	"github.com/mav-dashboard/harvester/internal/config"
	"github.com/mav-dashboard/harvester/internal/harvest"
	"github.com/mav-dashboard/harvester/internal/loader"
	"github.com/mav-dashboard/harvester/internal/obs"
	"github.com/mav-dashboard/harvester/internal/orchestrator"
	"github.com/mav-dashboard/harvester/internal/osa"
	"github.com/mav-dashboard/harvester/internal/publish"
	"github.com/mav-dashboard/harvester/internal/routegraph"
	"github.com/mav-dashboard/harvester/internal/types"
	"github.com/mav-dashboard/harvester/internal/upstream"
)

const (
	exitSuccess      = 0
	exitGeneralError = 1
	exitConflict     = 2

	localStoreDir = "./mavharvest-local"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "run-daily"
	if len(args) > 0 && !hasFlagPrefix(args[0]) {
		command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("mavharvest "+command, flag.ContinueOnError)
	targetDate := fs.String("target_date", time.Now().Format("2006-01-02"), "Travel date to harvest, YYYY-MM-DD")
	baseDelay := fs.Duration("base_delay", config.DefaultBaseDelay, "Base jitter delay between consecutive pair attempts on one worker")
	maxPairs := fs.Int("max_pairs", config.DefaultMaxPairs, "Cap the number of pairs processed (0 = unbounded)")
	upload := fs.Bool("upload", true, "Mirror local blobs to the durable object store")
	incrementalInterval := fs.Int("incremental_interval", config.DefaultIncrementalPairs, "Completed-pair cadence that triggers an incremental publish")
	pairsFile := fs.String("pairs", "pairs.csv", "CSV file with a source,destination header listing station pairs")
	routesFile := fs.String("routes", "", "JSON route-graph fixture; omit to skip map rendering")
	lookbackDays := fs.Int("lookback_days", loader.DefaultLookbackDays, "Days to walk backward from target_date before giving up")
	debug := fs.Bool("debug", false, "Enable debug-level logging")
	otelExporter := fs.String("otel_exporter", "none", "OTel exporter for metrics/traces: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := fs.String("otel_endpoint", "", "OTLP collector endpoint (host:port); empty uses the exporter default")
	upstreamURL := fs.String("upstream_url", "", "Override the upstream offer-request URL (tests only)")
	if err := fs.Parse(args); err != nil {
		return exitGeneralError
	}

	logger := obs.NewLogger(*debug)
	cfg := config.FromEnv()

	switch command {
	case "run-daily", "test":
		return runHarvest(logger, cfg, runHarvestArgs{
			targetDate:          *targetDate,
			baseDelay:           *baseDelay,
			maxPairs:            *maxPairs,
			upload:              *upload,
			incrementalInterval: *incrementalInterval,
			pairsFile:           *pairsFile,
			routesFile:          *routesFile,
			lookbackDays:        *lookbackDays,
			testMode:            command == "test",
			upstreamURL:         *upstreamURL,
			otelExporter:        *otelExporter,
			otelEndpoint:        *otelEndpoint,
		})
	case "health-check":
		return healthCheck(logger, cfg, *pairsFile)
	case "status":
		return reportStatus(logger)
	default:
		fmt.Fprintf(os.Stderr, "mavharvest: unknown command %q (want run-daily, test, health-check, status)\n", command)
		return exitGeneralError
	}
}

func hasFlagPrefix(s string) bool {
	return len(s) > 0 && s[0] == '-'
}

type runHarvestArgs struct {
	targetDate          string
	baseDelay           time.Duration
	maxPairs            int
	upload              bool
	incrementalInterval int
	pairsFile           string
	routesFile          string
	lookbackDays        int
	testMode            bool
	upstreamURL         string
	otelExporter        string
	otelEndpoint        string
}

// runHarvest constructs every collaborator and drives one RunDaily call.
// Test mode caps pairs at 3 and base_delay at 1s and disables upload,
// overriding the caller's flags rather than failing on them.
func runHarvest(logger *slog.Logger, cfg config.Config, a runHarvestArgs) int {
	travelDate, err := time.Parse("2006-01-02", a.targetDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: invalid target_date %q: %v\n", a.targetDate, err)
		return exitGeneralError
	}

	pairs, err := readPairsCSV(a.pairsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: reading pair list: %v\n", err)
		return exitGeneralError
	}

	if a.testMode {
		a.maxPairs = config.TestModeMaxPairs
		a.baseDelay = config.TestModeBaseDelay
		a.upload = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	localStore, err := osa.NewFilesystemStore(localStoreDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: %v\n", err)
		return exitGeneralError
	}

	durableStore, err := buildDurableStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: %v\n", err)
		return exitGeneralError
	}

	metrics, tracer, err := buildObservability(ctx, a.otelExporter, a.otelEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: %v\n", err)
		return exitGeneralError
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", "err", err)
		}
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "err", err)
		}
	}()

	// One HTTP client is shared by every harvest worker; the cookie jar keeps
	// the upstream session alive across calls the way a browser would.
	jar, err := cookiejar.New(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: %v\n", err)
		return exitGeneralError
	}
	httpClient := &http.Client{Timeout: 30 * time.Second, Jar: jar}
	retryCfg := upstream.DefaultRetryConfig()
	client := upstream.NewClient(httpClient, retryCfg)
	if a.upstreamURL != "" {
		client = client.WithBaseURL(a.upstreamURL)
	}

	harvestCfg := harvest.DefaultConfig()
	harvestCfg.BaseDelay = a.baseDelay
	harvestCfg.MaxPairs = a.maxPairs
	harvestCfg.ProgressInterval = a.incrementalInterval

	pool := harvest.NewPool(harvestCfg, client, localStore, logger)
	pool.Instrument(metrics)
	prefixedStore := osa.NewPrefixedStore(cfg.BasePrefix, durableStore)
	publisher := publish.NewPublisher(localStore, prefixedStore, logger)
	dayLoader := loader.NewLoader(prefixedStore, logger)

	var routeSource routegraph.Source
	if a.routesFile != "" {
		routeSource = routegraph.NewFileSource(a.routesFile)
	}

	orc := orchestrator.New(orchestrator.Deps{
		Harvest:   pool,
		Publisher: publisher,
		Loader:    dayLoader,
		Routes:    routeSource,
		Artifacts: prefixedStore,
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    tracer,
	})

	report, err := orc.RunDaily(ctx, orchestrator.RunRequest{
		TravelDate:    travelDate,
		Pairs:         pairs,
		LookbackDays:  a.lookbackDays,
		DisableUpload: !a.upload,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunConflict) {
			fmt.Fprintf(os.Stderr, "mavharvest: %v\n", err)
			return exitConflict
		}
		fmt.Fprintf(os.Stderr, "mavharvest: run failed: %v\n", err)
		return exitGeneralError
	}

	fmt.Printf("run complete: date=%s processed=%d/%d succeeded=%d failed=%d artifacts=%d\n",
		report.Date, report.Processed, report.Total, report.Harvest.Succeeded, report.Harvest.Failed, len(report.Artifacts))

	if !acceptableFailureRate(report.Harvest) {
		fmt.Fprintf(os.Stderr, "mavharvest: %d/%d pairs failed, exceeding the acceptable failure rate\n",
			report.Harvest.Failed, report.Harvest.Completed)
		return exitGeneralError
	}
	return exitSuccess
}

// acceptableFailureRate applies the CLI's per-pair-failure exit-code rule:
// a run that completes without a fatal error still exits non-zero unless
// at least one pair succeeded and fewer than half of processed pairs
// failed.
func acceptableFailureRate(stats harvest.RunStats) bool {
	if stats.Succeeded == 0 {
		return false
	}
	return stats.Failed*2 < stats.Completed
}

// buildObservability constructs the metrics and tracer wrappers from the
// -otel_exporter/-otel_endpoint flags. The default "none" yields no-op
// instances, so a plain CLI invocation never touches an OTel backend.
func buildObservability(ctx context.Context, exporter, endpoint string) (*obs.Metrics, *obs.Tracer, error) {
	enabled := exporter != "" && exporter != string(obs.ExporterNone)

	mCfg := obs.DefaultMetricsConfig()
	mCfg.Enabled = enabled
	mCfg.ExporterType = obs.ExporterType(exporter)
	mCfg.OTLPEndpoint = endpoint
	mCfg.OTLPInsecure = endpoint != ""
	metrics, err := obs.NewMetrics(ctx, mCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing metrics: %w", err)
	}

	tCfg := obs.DefaultTracerConfig()
	tCfg.Enabled = enabled
	tCfg.ExporterType = obs.ExporterType(exporter)
	tCfg.OTLPEndpoint = endpoint
	tCfg.OTLPInsecure = endpoint != ""
	tracer, err := obs.NewTracer(ctx, tCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing tracer: %w", err)
	}
	return metrics, tracer, nil
}

// buildDurableStore constructs a GCSStore when BUCKET_NAME/PROJECT_ID are
// set, otherwise falls back to a second local FilesystemStore so test and
// health-check modes never require real cloud credentials.
func buildDurableStore(ctx context.Context, cfg config.Config) (osa.Store, error) {
	if !cfg.GCSConfigured() {
		return osa.NewFilesystemStore(localStoreDir + "-durable")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("constructing GCS client: %w", err)
	}
	return osa.NewGCSStore(client, cfg.BucketName), nil
}

// readPairsCSV reads the source,destination header format the pair-list
// file uses. encoding/csv is stdlib; see DESIGN.md for why no third-party
// CSV library is warranted here.
func readPairsCSV(path string) ([]types.StationPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 2 || header[0] != "source" || header[1] != "destination" {
		return nil, fmt.Errorf("expected header \"source,destination\", got %v", header)
	}

	var pairs []types.StationPair
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		pair := types.StationPair{Origin: record[0], Destination: record[1]}
		if !pair.Valid() {
			return nil, fmt.Errorf("malformed pair %v", record)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// healthCheck verifies the pair-list CSV parses, the local output
// directory is creatable, and the OSA is reachable, then reports host
// diagnostics.
func healthCheck(logger *slog.Logger, cfg config.Config, pairsFile string) int {
	if _, err := readPairsCSV(pairsFile); err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: health-check: pair list: %v\n", err)
		return exitGeneralError
	}

	if _, err := osa.NewFilesystemStore(localStoreDir); err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: health-check: local store: %v\n", err)
		return exitGeneralError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := buildDurableStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: health-check: durable store: %v\n", err)
		return exitGeneralError
	}
	if _, err := store.List(ctx, ""); err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: health-check: OSA unreachable: %v\n", err)
		return exitGeneralError
	}

	diag, err := obs.CollectHostDiagnostics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mavharvest: health-check: host diagnostics: %v\n", err)
		return exitGeneralError
	}
	logger.Info("health-check passed", "cpu_percent", diag.CPUPercent, "mem_used", diag.MemUsed, "mem_total", diag.MemTotal, "load1", diag.LoadAvg1)
	fmt.Printf("ok: cpu=%.1f%% mem_used=%d/%d load1=%.2f\n", diag.CPUPercent, diag.MemUsed, diag.MemTotal, diag.LoadAvg1)
	return exitSuccess
}

// reportStatus is a placeholder for the `status` command in this
// single-process CLI: a real deployment exposes RunStatus over the
// web-trigger collaborator's HTTP endpoint (the PORT environment
// variable); this standalone invocation has no running orchestrator to
// query and reports that plainly rather than fabricating a status.
func reportStatus(logger *slog.Logger) int {
	logger.Info("status queried outside a running orchestrator")
	fmt.Println("status: no orchestrator running in this process; query the web-trigger endpoint instead")
	return exitSuccess
}

func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "mavharvest: shutting down")
		cancel()
	}()
}
