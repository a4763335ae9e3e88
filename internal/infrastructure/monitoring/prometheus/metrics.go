package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Job layer
	JobsSubmittedTotal CounterVec
	JobsCompletedTotal CounterVec
	JobDuration        HistogramVec
	JobsActive         GaugeVec
	JobSliceRetries    CounterVec
	JobQueueDepth      GaugeVec

	// Docking layer
	LigandsDockedTotal   CounterVec
	LigandsFilteredTotal CounterVec
	LigandsSkippedTotal  CounterVec
	DockingDuration      HistogramVec
	GridMapBuildDuration HistogramVec
	GridMapsPopulated    CounterVec
	RefineIterations     HistogramVec
	BestEnergy           HistogramVec
	ActiveDockingWorkers GaugeVec

	// Infrastructure layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec
	StorageTransferBytes   CounterVec
	StorageOpDuration      HistogramVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default buckets
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultJobDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200}
	// Per-ligand docking runs span milliseconds (rigid fragments) to minutes
	// (highly flexible ligands on fine grids).
	DefaultDockDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180}
	DefaultSizeBuckets         = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	// Free-energy scores in kcal/mol; virtual screening hits cluster in
	// the -14..-4 range, decoys above.
	DefaultEnergyBuckets = []float64{-16, -14, -12, -10, -9, -8, -7, -6, -5, -4, -2, 0}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Jobs
	m.JobsSubmittedTotal = collector.RegisterCounter("jobs_submitted_total", "Screening jobs submitted", "source")
	m.JobsCompletedTotal = collector.RegisterCounter("jobs_completed_total", "Screening jobs finished", "status")
	m.JobDuration = collector.RegisterHistogram("job_duration_seconds", "Wall time from claim to completion", DefaultJobDurationBuckets, "library")
	m.JobsActive = collector.RegisterGauge("jobs_active", "Jobs currently being processed", "worker")
	m.JobSliceRetries = collector.RegisterCounter("job_slice_retries_total", "Slice processing retries", "reason")
	m.JobQueueDepth = collector.RegisterGauge("job_queue_depth", "Pending jobs awaiting a worker")

	// Docking
	m.LigandsDockedTotal = collector.RegisterCounter("ligands_docked_total", "Ligands docked", "status")
	m.LigandsFilteredTotal = collector.RegisterCounter("ligands_filtered_total", "Ligands rejected by property filters", "filter")
	m.LigandsSkippedTotal = collector.RegisterCounter("ligands_skipped_total", "Ligands skipped (no refinable conformation)", "reason")
	m.DockingDuration = collector.RegisterHistogram("docking_duration_seconds", "Per-ligand docking wall time", DefaultDockDurationBuckets, "outcome")
	m.GridMapBuildDuration = collector.RegisterHistogram("grid_map_build_duration_seconds", "Grid map population wall time", DefaultDockDurationBuckets, "atom_type")
	m.GridMapsPopulated = collector.RegisterCounter("grid_maps_populated_total", "Grid maps populated", "atom_type")
	m.RefineIterations = collector.RegisterHistogram("refine_iterations", "BFGS iterations per refinement", []float64{1, 2, 5, 10, 20, 50, 100, 200, 500}, "converged")
	m.BestEnergy = collector.RegisterHistogram("best_energy_kcal_mol", "Reported free energy of the best pose", DefaultEnergyBuckets, "library")
	m.ActiveDockingWorkers = collector.RegisterGauge("active_docking_workers", "Threads busy in the docking pool")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic", "message_type")
	m.StorageTransferBytes = collector.RegisterCounter("storage_transfer_bytes_total", "Bytes moved to/from object storage", "direction", "bucket")
	m.StorageOpDuration = collector.RegisterHistogram("storage_op_duration_seconds", "Object storage operation duration", DefaultHTTPDurationBuckets, "operation", "bucket")

	// System health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordLigandDocked records the outcome of a single ligand docking run.
// Skipped ligands (no conformation survived refinement) carry outcome
// "skipped" and do not report an energy.
func RecordLigandDocked(metrics *AppMetrics, library string, skipped bool, energy float64, duration time.Duration) {
	if skipped {
		metrics.LigandsDockedTotal.WithLabelValues("skipped").Inc()
		metrics.DockingDuration.WithLabelValues("skipped").Observe(duration.Seconds())
		return
	}
	metrics.LigandsDockedTotal.WithLabelValues("docked").Inc()
	metrics.DockingDuration.WithLabelValues("docked").Observe(duration.Seconds())
	metrics.BestEnergy.WithLabelValues(library).Observe(energy)
}

func RecordLigandFiltered(metrics *AppMetrics, filter string) {
	metrics.LigandsFilteredTotal.WithLabelValues(filter).Inc()
}

func RecordGridMapBuild(metrics *AppMetrics, atomType string, duration time.Duration) {
	metrics.GridMapsPopulated.WithLabelValues(atomType).Inc()
	metrics.GridMapBuildDuration.WithLabelValues(atomType).Observe(duration.Seconds())
}

func RecordJobCompleted(metrics *AppMetrics, library, status string, duration time.Duration) {
	metrics.JobsCompletedTotal.WithLabelValues(status).Inc()
	metrics.JobDuration.WithLabelValues(library).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordStorageTransfer(metrics *AppMetrics, direction, bucket string, bytes int64, duration time.Duration) {
	metrics.StorageTransferBytes.WithLabelValues(direction, bucket).Add(float64(bytes))
	metrics.StorageOpDuration.WithLabelValues(direction, bucket).Observe(duration.Seconds())
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
