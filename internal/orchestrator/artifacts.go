package orchestrator

// Fixed artifact and map names: the orchestrator writes exactly these,
// never a caller-supplied name, so a derived artifact can never collide
// with a harvest blob's bulk_<origin>_<dest>_<timestamp>.json key.
const (
	artifactQuickStats           = "quick_stats"
	artifactDelayHistogram       = "delay_histogram"
	artifactPriceHistogram       = "price_histogram"
	artifactRouteAnalysisSummary = "route_analysis_summary"
	artifactDelayedRoutes        = "delayed_routes"
	artifactExpensiveRoutes      = "expensive_routes"
	artifactLateTrainsAnalysis   = "late_trains_analysis"

	mapDelayAware = "delay_aware_train_map"
	mapMaxDelay   = "max_delay_train_map"

	topRoutesLimit = 20
)

// mapsDirectory is the fixed subdirectory derived map artifacts live under
// within a day partition: {base_prefix}/{date}/maps/<map_name>.html.
const mapsDirectory = "maps"
