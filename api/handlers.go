/*
handlers.go - HTTP API handlers for the leave management system

PURPOSE:
  Exposes the leave accounting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees               List all employees
    PUT    /api/employees               Create or update employee
    GET    /api/employees/{id}          Get employee details
    GET    /api/employees/{id}/buckets  Quota buckets for a window
    GET    /api/employees/{id}/summary  Monthly per-type hour report
    POST   /api/employees/{id}/requests Submit leave/overtime request

  Requests:
    GET    /api/requests                List requests (filters)
    GET    /api/requests/{key}          Get one request
    PUT    /api/requests/{key}          Edit or revise
    POST   /api/requests/{key}/approve  Approve (pending only)
    POST   /api/requests/{key}/reject   Reject (pending or approved)
    POST   /api/requests/{key}/cancel   Cancel
    DELETE /api/requests/{key}          Soft delete
    GET    /api/requests/{key}/breakdown Daily working-hour rows

  Reports:
    GET    /api/reports/monthly         Company-wide monthly report

  Admin:
    POST   /api/admin/grants            Create a quota bucket
    POST   /api/admin/grants/overtime   Bonus bucket from approved overtime
    POST   /api/admin/provision         Run annual provisioning now

REQUEST FLOW:
  1. Parse HTTP request
  2. Structural validation (go-playground/validator)
  3. Call domain logic (leave.Service)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient quota
  - 404: Resource not found
  - 409: Refused state transition, concurrent modification
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Front these with a gateway before exposing them.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/service.go: Domain operations
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/5xRuby/daikichi-sub000/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Validate *validator.Validate
	Logger   *slog.Logger
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *leave.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:  svc,
		Validate: validator.New(),
		Logger:   logger,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Service.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// PutEmployee creates or updates an employee.
func (h *Handler) PutEmployee(w http.ResponseWriter, r *http.Request) {
	var req PutEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	joinDate, _ := time.Parse("2006-01-02", req.JoinDate)
	emp := leave.Employee{
		ID:       req.ID,
		Name:     req.Name,
		Role:     leave.Role(req.Role),
		JoinDate: joinDate,
	}
	if err := h.Service.Store.PutEmployee(r.Context(), emp); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// =============================================================================
// REQUEST LIFECYCLE HANDLERS
// =============================================================================

// SubmitRequest submits a leave or overtime request for an employee.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	start, err := parseTimestamp(dto.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start time", err)
		return
	}
	end, err := parseTimestamp(dto.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end time", err)
		return
	}

	req, err := h.Service.SubmitRequest(r.Context(), leave.SubmitInput{
		EmployeeID:   employeeID,
		Kind:         leave.RequestKind(dto.Kind),
		LeaveType:    leave.LeaveType(dto.LeaveType),
		Compensation: leave.CompensationType(dto.Compensation),
		Start:        start,
		End:          end,
		Description:  dto.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ListRequests returns requests matching the query filters.
// GET /api/requests?employee_id=&kind=&leave_type=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	f := leave.RequestFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Kind:       leave.RequestKind(r.URL.Query().Get("kind")),
		LeaveType:  leave.LeaveType(r.URL.Query().Get("leave_type")),
	}

	reqs, err := h.Service.ListRequests(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetRequest returns one request by key.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// GetBreakdown returns the per-day working-hour rows of a request.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.Store.BreakdownsByRequest(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	type row struct {
		Date  string `json:"date"`
		Hours int    `json:"hours"`
	}
	out := make([]row, len(rows))
	for i, b := range rows {
		out[i] = row{Date: b.Date.Format("2006-01-02"), Hours: b.Hours}
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateRequest edits or revises a request.
// PUT /api/requests/{key}
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}

	var dto UpdateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var in leave.UpdateInput
	if dto.Start != nil {
		t, err := parseTimestamp(*dto.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start time", err)
			return
		}
		in.Start = &t
	}
	if dto.End != nil {
		t, err := parseTimestamp(*dto.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end time", err)
			return
		}
		in.End = &t
	}
	if dto.LeaveType != nil {
		lt := leave.LeaveType(*dto.LeaveType)
		in.LeaveType = &lt
	}
	in.Description = dto.Description

	req, err := h.Service.UpdateRequest(r.Context(), key, in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ApproveRequest approves a pending request.
// POST /api/requests/{key}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.Service.ApproveRequest)
}

// RejectRequest rejects a pending or approved request.
// POST /api/requests/{key}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.sign(w, r, h.Service.RejectRequest)
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, key uuid.UUID, managerID string) (*leave.Request, error)) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}

	var dto SignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	req, err := op(r.Context(), key, dto.ManagerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CancelRequest cancels a request.
// POST /api/requests/{key}/cancel
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}
	req, err := h.Service.CancelRequest(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeleteRequest soft-deletes a request.
// DELETE /api/requests/{key}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	key, ok := h.requestKey(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteRequest(r.Context(), key); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BUCKET AND REPORT HANDLERS
// =============================================================================

// GetBuckets returns the employee's quota buckets overlapping a window.
// GET /api/employees/{id}/buckets?from=2016-01-01&to=2016-12-31
// Defaults to the current calendar year.
func (h *Handler) GetBuckets(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	now := h.Service.Now()
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		to = t
	}

	buckets, err := h.Service.Buckets(r.Context(), employeeID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]BucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = toBucketDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonthlySummary returns one employee's approved hours by leave type
// for a month. GET /api/employees/{id}/summary?year=2016&month=8
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	h.monthlySummary(w, r, chi.URLParam(r, "id"))
}

// GetMonthlyReport returns the company-wide monthly report.
// GET /api/reports/monthly?year=2016&month=8
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	h.monthlySummary(w, r, "")
}

func (h *Handler) monthlySummary(w http.ResponseWriter, r *http.Request, employeeID string) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing year", err)
		return
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		writeError(w, http.StatusBadRequest, "Invalid or missing month", err)
		return
	}
	month := time.Month(monthNum)

	sum, err := h.Service.MonthlySummary(r.Context(), employeeID, year, month)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(employeeID, year, month, sum))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateGrant creates a quota bucket by hand.
// POST /api/admin/grants
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var dto GrantRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	effective, _ := time.Parse("2006-01-02", dto.EffectiveDate)
	expiration, _ := time.Parse("2006-01-02", dto.ExpirationDate)

	bucket, err := leave.Grant(r.Context(), h.Service.Store, h.Service.Now, leave.GrantInput{
		EmployeeID:     dto.EmployeeID,
		LeaveType:      leave.LeaveType(dto.LeaveType),
		QuotaHours:     dto.QuotaHours,
		EffectiveDate:  effective,
		ExpirationDate: expiration,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBucketDTO(bucket))
}

// GrantOvertime creates the bonus-leave bucket for an approved overtime
// request. POST /api/admin/grants/overtime
func (h *Handler) GrantOvertime(w http.ResponseWriter, r *http.Request) {
	var dto OvertimeGrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	key, err := uuid.Parse(dto.RequestKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request key", err)
		return
	}
	req, err := h.Service.GetRequest(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	effective, _ := time.Parse("2006-01-02", dto.EffectiveDate)
	expiration, _ := time.Parse("2006-01-02", dto.ExpirationDate)

	bucket, err := leave.GrantFromOvertime(r.Context(), h.Service.Store, h.Service.Now,
		req, effective, expiration)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBucketDTO(bucket))
}

// ProvisionAnnual runs annual-leave provisioning for every employee now.
// POST /api/admin/provision
func (h *Handler) ProvisionAnnual(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employees, err := h.Service.Store.ListEmployees(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	now := h.Service.Now()
	var created []BucketDTO
	var skipped int
	for _, e := range employees {
		bucket, err := leave.ProvisionAnnual(ctx, h.Service.Store, h.Service.Now, e, now)
		if err != nil {
			// Overlap means this window is already provisioned.
			if leave.IsValidation(err) {
				skipped++
				continue
			}
			h.writeDomainError(w, err)
			return
		}
		if bucket != nil {
			created = append(created, toBucketDTO(bucket))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"skipped": skipped,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) requestKey(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	key, err := uuid.Parse(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request key", err)
		return uuid.Nil, false
	}
	return key, true
}

// parseTimestamp accepts RFC3339 or a local "YYYY-MM-DD HH:MM".
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}

// writeDomainError maps a leave package error to an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case leave.IsBusiness(err):
		writeError(w, http.StatusConflict, "Transition not permitted", err)
	case leave.IsRetryable(err):
		writeError(w, http.StatusConflict, "Concurrent modification, retry", err)
	default:
		h.Logger.Error("internal error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

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
