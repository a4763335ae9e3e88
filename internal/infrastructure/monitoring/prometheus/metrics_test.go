package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	return m, c
}

func TestNewAppMetrics_AllMetricsRegistered(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.JobsSubmittedTotal)
	assert.NotNil(t, m.JobsCompletedTotal)
	assert.NotNil(t, m.JobDuration)
	assert.NotNil(t, m.LigandsDockedTotal)
	assert.NotNil(t, m.LigandsFilteredTotal)
	assert.NotNil(t, m.DockingDuration)
	assert.NotNil(t, m.GridMapBuildDuration)
	assert.NotNil(t, m.BestEnergy)
	assert.NotNil(t, m.DBQueryDuration)
	assert.NotNil(t, m.StorageTransferBytes)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "POST", "/api/v1/jobs", 201, 42*time.Millisecond, 512, 128)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="POST",path="/api/v1/jobs",status_code="201"} 1`)
	assert.Contains(t, output, "test_unit_http_request_duration_seconds_bucket")
}

func TestRecordLigandDocked_Success(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordLigandDocked(m, "zinc-fragments", false, -8.4, 750*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_ligands_docked_total{status="docked"} 1`)
	assert.Contains(t, output, `test_unit_best_energy_kcal_mol_count{library="zinc-fragments"} 1`)
}

func TestRecordLigandDocked_Skipped(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordLigandDocked(m, "zinc-fragments", true, 0, 10*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_ligands_docked_total{status="skipped"} 1`)
	// Skipped ligands contribute no energy observation.
	assert.NotContains(t, output, `test_unit_best_energy_kcal_mol_count{library="zinc-fragments"} 1`)
}

func TestRecordLigandFiltered(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordLigandFiltered(m, "molecular_weight")
	RecordLigandFiltered(m, "molecular_weight")
	RecordLigandFiltered(m, "rotatable_bonds")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_ligands_filtered_total{filter="molecular_weight"} 2`)
	assert.Contains(t, output, `test_unit_ligands_filtered_total{filter="rotatable_bonds"} 1`)
}

func TestRecordGridMapBuild(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordGridMapBuild(m, "C_H", 120*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_grid_maps_populated_total{atom_type="C_H"} 1`)
	assert.Contains(t, output, "test_unit_grid_map_build_duration_seconds_bucket")
}

func TestRecordJobCompleted(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordJobCompleted(m, "zinc-leads", "done", 42*time.Second)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_jobs_completed_total{status="done"} 1`)
	assert.Contains(t, output, `test_unit_job_duration_seconds_count{library="zinc-leads"} 1`)
}

func TestRecordDBQuery_Error(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "select", time.Millisecond, errors.New("boom"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_errors_total{component="postgres",error_type="query_error",severity="error"} 1`)
}

func TestRecordDBQuery_Success_NoError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "select", time.Millisecond, nil)

	output := scrapeMetrics(t, c)
	assert.NotContains(t, output, "query_error")
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "progress", true)
	RecordCacheAccess(m, "progress", false)
	RecordCacheAccess(m, "progress", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="progress"} 1`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="progress"} 2`)
}

func TestRecordStorageTransfer(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordStorageTransfer(m, "download", "moldock-ligands", 1<<20, 200*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_storage_transfer_bytes_total{bucket="moldock-ligands",direction="download"}`)
}

func TestRecordError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordError(m, "worker", "docking_failed", "error")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_errors_total{component="worker",error_type="docking_failed",severity="error"} 1`)
}
