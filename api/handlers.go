/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the ingestion pipeline and the two reconciliation engines via
  REST. Handles HTTP request/response and JSON serialization, and
  delegates everything else to the domain packages.

ENDPOINTS:
  Imports:
    POST /api/imports/timesheets           Import a timesheet export
    POST /api/imports/actuals              Import a ledger actuals export
    POST /api/imports/actuals/categorize   Run the categorization pass
    POST /api/imports/resources            Import resource master data
    (import bodies are text/csv; send ?format=xlsx for Excel workbooks)

  Capacity:
    POST /api/commitments                  Pledge capacity for a resource
    GET  /api/capacity                     All-resource utilization report
    GET  /api/capacity/{resourceID}        One resource over ?start=&end=
    POST /api/allocations                  Record allocation + recompute

  Finance:
    GET  /api/finance/ledger               Per-workstream variance rows
    GET  /api/finance/summary              Aggregated totals

  Reference data:
    GET/POST /api/holidays                 Holiday calendar
    GET  /api/resources                    Imported resources
    POST /api/workstreams, /api/rates      Finance reference upserts
    POST /api/fixtures/demo                Demo data seed

ERROR HANDLING:
  Import endpoints answer 200 with the structured result even when every
  row failed - the per-row error table is the contract. 400 is reserved
  for a structurally unreadable document or bad request JSON. Capacity
  queries translate ErrNoCommitment/ErrResourceNotFound to 404; anything
  else is a 500 with the wrapped message.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/finrecon/calendar"
	"github.com/warp/finrecon/capacity"
	"github.com/warp/finrecon/finance"
	"github.com/warp/finrecon/importer"
	"github.com/warp/finrecon/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Timesheets *importer.TimesheetImporter
	Actuals    *importer.ActualsImporter
	Resources  *importer.ResourceImporter
	Capacity   *capacity.Engine
	Finance    *finance.Engine

	// Currency is the ISO code used for display-formatted amounts.
	Currency string
}

// NewHandler wires the engines against the store with explicit
// dependencies; nothing reads ambient process state.
func NewHandler(store *sqlite.Store, rules importer.CategorizationRules, currency string) *Handler {
	cal := calendar.NewEngine(store)
	return &Handler{
		Store:      store,
		Timesheets: importer.NewTimesheetImporter(store, uuid.NewString, time.Now),
		Actuals:    importer.NewActualsImporter(store, rules, uuid.NewString, time.Now),
		Resources:  importer.NewResourceImporter(store, uuid.NewString, time.Now),
		Capacity:   capacity.NewEngine(store, cal, uuid.NewString, time.Now),
		Finance:    finance.NewEngine(store),
		Currency:   currency,
	}
}

// maxImportBody bounds import uploads; the exports are human-curated
// files, not unbounded streams.
const maxImportBody = 32 << 20 // 32 MiB

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// importFunc adapts one domain importer to the shared import handler.
type importFunc struct {
	csv  func(r *http.Request, text string) (*importer.Result, error)
	xlsx func(r *http.Request, body io.Reader) (*importer.Result, error)
}

// ImportTimesheets imports a timesheet export.
// POST /api/imports/timesheets
func (h *Handler) ImportTimesheets(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, importFunc{
		csv:  func(r *http.Request, text string) (*importer.Result, error) { return h.Timesheets.Import(r.Context(), text) },
		xlsx: func(r *http.Request, body io.Reader) (*importer.Result, error) { return h.Timesheets.ImportXLSX(r.Context(), body) },
	})
}

// ImportActuals imports a ledger actuals export.
// POST /api/imports/actuals
func (h *Handler) ImportActuals(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, importFunc{
		csv:  func(r *http.Request, text string) (*importer.Result, error) { return h.Actuals.Import(r.Context(), text) },
		xlsx: func(r *http.Request, body io.Reader) (*importer.Result, error) { return h.Actuals.ImportXLSX(r.Context(), body) },
	})
}

// ImportResources imports resource master data.
// POST /api/imports/resources
func (h *Handler) ImportResources(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, importFunc{
		csv:  func(r *http.Request, text string) (*importer.Result, error) { return h.Resources.Import(r.Context(), text) },
		xlsx: func(r *http.Request, body io.Reader) (*importer.Result, error) { return h.Resources.ImportXLSX(r.Context(), body) },
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, fn importFunc) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	var result *importer.Result
	if r.URL.Query().Get("format") == "xlsx" {
		result, err = fn.xlsx(r, bytes.NewReader(body))
	} else {
		result, err = fn.csv(r, string(body))
	}
	if err != nil {
		// Structural failure: the document itself is unreadable.
		writeError(w, http.StatusBadRequest, "Import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CategorizeActuals runs the actuals categorization pass.
// POST /api/imports/actuals/categorize
func (h *Handler) CategorizeActuals(w http.ResponseWriter, r *http.Request) {
	classified, err := h.Actuals.Categorize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Categorization failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CategorizeResultDTO{Classified: classified})
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// ListResources returns all imported resources.
// GET /api/resources
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.Store.ListResources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list resources", err)
		return
	}

	dtos := make([]ResourceDTO, len(resources))
	for i, res := range resources {
		dtos[i] = toResourceDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CAPACITY HANDLERS
// =============================================================================

// CreateCommitment pledges capacity for a resource.
// POST /api/commitments
func (h *Handler) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := calendar.ParseDMY(req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start (use day-month-year)", err)
		return
	}
	end, err := calendar.ParseDMY(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end (use day-month-year)", err)
		return
	}

	commitment, err := h.Capacity.CreateCommitment(r.Context(), capacity.NewCommitment{
		ResourceID:     req.ResourceID,
		PeriodStart:    start,
		PeriodEnd:      end,
		Cadence:        capacity.Cadence(req.Cadence),
		CommittedHours: decimal.NewFromFloat(req.CommittedHours),
	})
	if err != nil {
		switch {
		case errors.Is(err, capacity.ErrUnknownCadence), errors.Is(err, calendar.ErrInvalidRange):
			writeError(w, http.StatusBadRequest, "Invalid commitment", err)
		case errors.Is(err, capacity.ErrResourceNotFound):
			writeError(w, http.StatusNotFound, "Resource not found", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to create commitment", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toCommitmentDTO(*commitment))
}

// GetCapacity computes utilization for one resource over a window.
// GET /api/capacity/{resourceID}?start=DD-MM-YYYY&end=DD-MM-YYYY
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")

	start, err := calendar.ParseDMY(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use day-month-year)", err)
		return
	}
	end, err := calendar.ParseDMY(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use day-month-year)", err)
		return
	}

	calc, err := h.Capacity.GetCapacityCalculation(r.Context(), resourceID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, capacity.ErrNoCommitment), errors.Is(err, capacity.ErrResourceNotFound):
			writeError(w, http.StatusNotFound, "Capacity lookup failed", err)
		default:
			writeError(w, http.StatusInternalServerError, "Capacity lookup failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toCapacityDTO(*calc))
}

// GetAllCapacities returns the best-effort all-resource report.
// GET /api/capacity
func (h *Handler) GetAllCapacities(w http.ResponseWriter, r *http.Request) {
	calcs, skipped, err := h.Capacity.GetAllCapacities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Capacity report failed", err)
		return
	}

	report := CapacityReportDTO{
		Capacities: make([]CapacityDTO, len(calcs)),
		Skipped:    skipped,
	}
	for i, c := range calcs {
		report.Capacities[i] = toCapacityDTO(c)
	}
	if report.Skipped == nil {
		report.Skipped = []capacity.Skipped{}
	}
	writeJSON(w, http.StatusOK, report)
}

// CreateAllocation records a feature allocation and triggers the
// allocated-hours recompute. This is the external trigger the capacity
// engine's pull-based recompute expects.
// POST /api/allocations
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ResourceID == "" {
		writeError(w, http.StatusBadRequest, "resource_id is required", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.InsertAllocation(ctx, capacity.Allocation{
		ResourceID:     req.ResourceID,
		ProjectID:      req.ProjectID,
		FeatureName:    req.FeatureName,
		AllocatedHours: decimal.NewFromFloat(req.AllocatedHours),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record allocation", err)
		return
	}

	if err := h.Capacity.UpdateAllocatedHours(ctx, req.ResourceID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute allocated hours", err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// =============================================================================
// FINANCE HANDLERS
// =============================================================================

// GetFinanceLedger returns per-workstream variance rows.
// GET /api/finance/ledger?project=&month=
func (h *Handler) GetFinanceLedger(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Finance.GetLedger(r.Context(), r.URL.Query().Get("project"), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build finance ledger", err)
		return
	}

	dtos := make([]FinanceLedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row, h.Currency)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetFinanceSummary returns the aggregated ledger totals.
// GET /api/finance/summary?project=&month=
func (h *Handler) GetFinanceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Finance.GetSummary(r.Context(), r.URL.Query().Get("project"), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build finance summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*summary, h.Currency))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a public holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := calendar.ParseDMY(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use day-month-year)", err)
		return
	}

	holiday := calendar.PublicHoliday{Date: date, Name: req.Name, Region: req.Region}
	if err := h.Store.InsertHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusConflict, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// =============================================================================
// FINANCE REFERENCE DATA HANDLERS
// =============================================================================

// SaveWorkstream upserts workstream reference data.
// POST /api/workstreams
func (h *Handler) SaveWorkstream(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkstreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required", nil)
		return
	}

	if err := h.Store.SaveWorkstream(r.Context(), finance.Workstream{
		ID:             req.ID,
		ProjectID:      req.ProjectID,
		Code:           req.Code,
		Name:           req.Name,
		CostReceiver:   req.CostReceiver,
		Budget:         decimal.NewFromFloat(req.Budget),
		ForecastBudget: decimal.NewFromFloat(req.ForecastBudget),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save workstream", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// SaveLabourRate upserts a rate-table entry.
// POST /api/rates
func (h *Handler) SaveLabourRate(w http.ResponseWriter, r *http.Request) {
	var req SaveLabourRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActivityType == "" {
		writeError(w, http.StatusBadRequest, "activity_type is required", nil)
		return
	}

	if err := h.Store.SaveLabourRate(r.Context(), finance.LabourRate{
		ActivityType: req.ActivityType,
		HourlyRate:   decimal.NewFromFloat(req.HourlyRate),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save labour rate", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
