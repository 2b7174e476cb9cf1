package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finrecon/api"
	"github.com/warp/finrecon/importer"
	"github.com/warp/finrecon/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store, importer.DefaultCategorizationRules(), "AUD")
	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, contentType, strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// =============================================================================
// IMPORTS
// =============================================================================

func TestImportTimesheets_PartialSuccessIs200(t *testing.T) {
	// GIVEN: A timesheet upload where one of two rows is invalid
	// WHEN: Posting it
	// THEN: 200 with the structured per-row error table, not a 4xx

	srv := newTestServer(t)
	csv := "Stream,Month,Name of employee or applicant,Personnel Number,Date,Activity Type,General receiver,Number (unit)\n" +
		"Platform,Mar-2025,Alice Nguyen,10001,03-03-2025,N1_CAP,WBS-N1-001,8\n" +
		"Platform,Mar-2025,Alice Nguyen,10001,notadate,N1_CAP,WBS-N1-001,8\n"

	resp := post(t, srv, "/api/imports/timesheets", "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result importer.Result
	decode(t, resp, &result)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, 1, result.RecordsImported)
	assert.Equal(t, 1, result.RecordsFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
}

func TestImportTimesheets_StructuralFailureIs400(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/imports/timesheets", "text/csv", "Stream,Month\nPlatform,Mar-2025\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportResources_ThenList(t *testing.T) {
	srv := newTestServer(t)
	csv := "ResourceName,Contract Type,EmployeeID\nAlice Nguyen,FTE,10001\n"

	resp := post(t, srv, "/api/imports/resources", "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/resources")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resources []api.ResourceDTO
	decode(t, resp, &resources)
	require.Len(t, resources, 1)
	assert.Equal(t, "Alice Nguyen", resources[0].Name)
	assert.Equal(t, "FTE", resources[0].ContractType)
}

func TestCategorizeActuals(t *testing.T) {
	srv := newTestServer(t)
	csv := "Month,Posting Date,Cost Element,WBS element,Value in Obj. Crcy\n" +
		"Mar-2025,10-03-2025,6500010,WBS-N1-001,100\n"

	resp := post(t, srv, "/api/imports/actuals", "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "/api/imports/actuals/categorize", "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.CategorizeResultDTO
	decode(t, resp, &result)
	assert.Equal(t, 1, result.Classified)
}

// =============================================================================
// CAPACITY
// =============================================================================

func importAlice(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	csv := "ResourceName,Contract Type,EmployeeID\nAlice Nguyen,FTE,10001\n"
	resp := post(t, srv, "/api/imports/resources", "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/resources")
	var resources []api.ResourceDTO
	decode(t, resp, &resources)
	require.Len(t, resources, 1)
	return resources[0].ID
}

func TestCreateCommitmentAndQueryCapacity(t *testing.T) {
	// GIVEN: A per-day 8h commitment over ten working days
	// WHEN: Creating it and querying capacity for the window
	// THEN: 80 total hours and an under-utilized zero-actuals report

	srv := newTestServer(t)
	resourceID := importAlice(t, srv)

	body := `{"resource_id":"` + resourceID + `","period_start":"03-03-2025","period_end":"14-03-2025","cadence":"per-day","committed_hours":8}`
	resp := post(t, srv, "/api/commitments", "application/json", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var commitment api.CommitmentDTO
	decode(t, resp, &commitment)
	assert.Equal(t, 80.0, commitment.TotalAvailableHours)
	assert.Equal(t, 80.0, commitment.RemainingCapacity)

	resp = get(t, srv, "/api/capacity/"+resourceID+"?start=03-03-2025&end=14-03-2025")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var capacityDTO api.CapacityDTO
	decode(t, resp, &capacityDTO)
	assert.Equal(t, 80.0, capacityDTO.TotalCapacityHours)
	assert.Equal(t, 0.0, capacityDTO.ActualHours)
	assert.Equal(t, "under-utilized", capacityDTO.Status)
}

func TestCreateCommitment_UnknownCadenceIs400(t *testing.T) {
	srv := newTestServer(t)
	resourceID := importAlice(t, srv)

	body := `{"resource_id":"` + resourceID + `","period_start":"03-03-2025","period_end":"14-03-2025","cadence":"per-month","committed_hours":8}`
	resp := post(t, srv, "/api/commitments", "application/json", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCapacity_NoCommitmentIs404(t *testing.T) {
	srv := newTestServer(t)
	resourceID := importAlice(t, srv)

	resp := get(t, srv, "/api/capacity/"+resourceID+"?start=03-03-2025&end=14-03-2025")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAllCapacities_ReportsSkipped(t *testing.T) {
	srv := newTestServer(t)
	importAlice(t, srv)

	resp := get(t, srv, "/api/capacity/")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report api.CapacityReportDTO
	decode(t, resp, &report)
	assert.Empty(t, report.Capacities)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "no commitment", report.Skipped[0].Reason)
}

func TestCreateAllocation_RecomputesCommitment(t *testing.T) {
	srv := newTestServer(t)
	resourceID := importAlice(t, srv)

	body := `{"resource_id":"` + resourceID + `","period_start":"03-03-2025","period_end":"14-03-2025","cadence":"per-day","committed_hours":8}`
	resp := post(t, srv, "/api/commitments", "application/json", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	alloc := `{"resource_id":"` + resourceID + `","project_id":"proj-1","feature_name":"Feature","allocated_hours":30}`
	resp = post(t, srv, "/api/allocations", "application/json", alloc)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = get(t, srv, "/api/capacity/"+resourceID+"?start=03-03-2025&end=14-03-2025")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var capacityDTO api.CapacityDTO
	decode(t, resp, &capacityDTO)
	assert.Equal(t, 30.0, capacityDTO.AllocatedHours)
	assert.Equal(t, 50.0, capacityDTO.RemainingCapacity)
}

// =============================================================================
// FINANCE AND REFERENCE DATA
// =============================================================================

func TestFinanceLedgerAndSummary(t *testing.T) {
	srv := newTestServer(t)

	ws := `{"project_id":"proj-1","code":"N1","name":"Platform","cost_receiver":"WBS-N1-001","budget":5000,"forecast_budget":1000}`
	resp := post(t, srv, "/api/workstreams", "application/json", ws)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	csv := "Month,Posting Date,Cost Element,WBS element,Value in Obj. Crcy\n" +
		"Mar-2025,10-03-2025,6500010,WBS-N1-001,1200\n"
	resp = post(t, srv, "/api/imports/actuals", "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/finance/ledger?project=proj-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []api.FinanceLedgerRowDTO
	decode(t, resp, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200.0, rows[0].Actual)
	assert.Equal(t, 200.0, rows[0].Variance)
	assert.Equal(t, 20.0, rows[0].VariancePercent)
	assert.Equal(t, "$200.00", rows[0].VarianceDisplay)

	resp = get(t, srv, "/api/finance/summary?project=proj-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary api.FinanceSummaryDTO
	decode(t, resp, &summary)
	assert.Equal(t, 1, summary.Workstreams)
	assert.Equal(t, 200.0, summary.Variance)
}

func TestHolidays_DuplicateIsConflict(t *testing.T) {
	srv := newTestServer(t)
	holiday := `{"date":"10-03-2025","name":"Labour Day","region":"VIC"}`

	resp := post(t, srv, "/api/holidays", "application/json", holiday)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, srv, "/api/holidays", "application/json", holiday)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = get(t, srv, "/api/holidays/")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var holidays []api.HolidayDTO
	decode(t, resp, &holidays)
	require.Len(t, holidays, 1)
	assert.Equal(t, "10-03-2025", holidays[0].Date)
}

func TestLoadDemoFixtures(t *testing.T) {
	// The demo seed runs the whole pipeline end to end; a clean load means
	// the imports, categorization, commitments, and recompute all agree.
	srv := newTestServer(t)

	resp := post(t, srv, "/api/fixtures/demo", "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/capacity/")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report api.CapacityReportDTO
	decode(t, resp, &report)
	assert.Len(t, report.Capacities, 3)
	assert.Empty(t, report.Skipped)

	resp = get(t, srv, "/api/finance/summary?project=proj-demo")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary api.FinanceSummaryDTO
	decode(t, resp, &summary)
	assert.Equal(t, 2, summary.Workstreams)
	assert.Greater(t, summary.Actual, 0.0)
}
