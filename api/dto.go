/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employee:
    EmployeeDTO, PutEmployeeRequest

  Request lifecycle:
    SubmitRequestDTO, UpdateRequestDTO, SignRequestDTO, RequestDTO

  Buckets:
    BucketDTO, GrantRequestDTO

  Reports:
    SummaryDTO

VALIDATION:
  Structural validation (required fields, formats, enums) lives on the
  struct tags and runs through go-playground/validator in the handlers.
  Semantic validation (working hours, quota) stays in the leave package.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/5xRuby/daikichi-sub000/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	JoinDate string `json:"join_date"`
}

// PutEmployeeRequest creates or updates an employee.
type PutEmployeeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=employee manager admin"`
	JoinDate string `json:"join_date" validate:"required,datetime=2006-01-02"`
}

// SubmitRequestDTO submits a leave or overtime request.
type SubmitRequestDTO struct {
	Kind         string `json:"kind" validate:"required,oneof=leave overtime"`
	LeaveType    string `json:"leave_type" validate:"required_if=Kind leave"`
	Compensation string `json:"compensation" validate:"required_if=Kind overtime,omitempty,oneof=leave pay"`
	Start        string `json:"start" validate:"required"`
	End          string `json:"end" validate:"required"`
	Description  string `json:"description"`
}

// UpdateRequestDTO edits a request; absent fields stay unchanged.
type UpdateRequestDTO struct {
	Start       *string `json:"start,omitempty"`
	End         *string `json:"end,omitempty"`
	LeaveType   *string `json:"leave_type,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SignRequestDTO carries the acting manager for approve/reject.
type SignRequestDTO struct {
	ManagerID string `json:"manager_id" validate:"required"`
}

// RequestDTO represents a request in API responses.
type RequestDTO struct {
	Key          string  `json:"key"`
	Kind         string  `json:"kind"`
	EmployeeID   string  `json:"employee_id"`
	ManagerID    *string `json:"manager_id,omitempty"`
	LeaveType    string  `json:"leave_type"`
	Compensation string  `json:"compensation,omitempty"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Description  string  `json:"description,omitempty"`
	Hours        int     `json:"hours"`
	Status       string  `json:"status"`
	SignDate     *string `json:"sign_date,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// BucketDTO represents a quota bucket in API responses.
type BucketDTO struct {
	ID             int64   `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	LeaveType      string  `json:"leave_type"`
	Quota          int     `json:"quota"`
	UsableHours    int     `json:"usable_hours"`
	LockedHours    int     `json:"locked_hours"`
	UsedHours      int     `json:"used_hours"`
	EffectiveDate  string  `json:"effective_date"`
	ExpirationDate string  `json:"expiration_date"`
	OvertimeKey    *string `json:"overtime_key,omitempty"`
}

// GrantRequestDTO creates a quota bucket by hand.
type GrantRequestDTO struct {
	EmployeeID     string `json:"employee_id" validate:"required"`
	LeaveType      string `json:"leave_type" validate:"required"`
	QuotaHours     int    `json:"quota_hours" validate:"required,gt=0"`
	EffectiveDate  string `json:"effective_date" validate:"required,datetime=2006-01-02"`
	ExpirationDate string `json:"expiration_date" validate:"required,datetime=2006-01-02"`
}

// OvertimeGrantDTO converts an approved overtime request into a
// bonus-leave bucket valid for the given window.
type OvertimeGrantDTO struct {
	RequestKey     string `json:"request_key" validate:"required,uuid4"`
	EffectiveDate  string `json:"effective_date" validate:"required,datetime=2006-01-02"`
	ExpirationDate string `json:"expiration_date" validate:"required,datetime=2006-01-02"`
}

// SummaryDTO is the monthly per-type hour report.
type SummaryDTO struct {
	EmployeeID string                    `json:"employee_id,omitempty"`
	Year       int                       `json:"year"`
	Month      int                       `json:"month"`
	Hours      map[string]map[string]int `json:"hours"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRequestDTO(r *leave.Request) RequestDTO {
	dto := RequestDTO{
		Key:          r.Key.String(),
		Kind:         string(r.Kind),
		EmployeeID:   r.EmployeeID,
		ManagerID:    r.ManagerID,
		LeaveType:    string(r.LeaveType),
		Compensation: string(r.Compensation),
		Start:        r.StartTime.Format(time.RFC3339),
		End:          r.EndTime.Format(time.RFC3339),
		Description:  r.Description,
		Hours:        r.Hours,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
	if r.SignDate != nil {
		s := r.SignDate.Format(time.RFC3339)
		dto.SignDate = &s
	}
	return dto
}

func toRequestDTOs(reqs []*leave.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toBucketDTO(b *leave.QuotaBucket) BucketDTO {
	dto := BucketDTO{
		ID:             b.ID,
		EmployeeID:     b.EmployeeID,
		LeaveType:      string(b.LeaveType),
		Quota:          b.Quota,
		UsableHours:    b.UsableHours,
		LockedHours:    b.LockedHours,
		UsedHours:      b.UsedHours,
		EffectiveDate:  b.EffectiveDate.Format("2006-01-02"),
		ExpirationDate: b.ExpirationDate.Format("2006-01-02"),
	}
	if b.OvertimeKey != nil {
		k := b.OvertimeKey.String()
		dto.OvertimeKey = &k
	}
	return dto
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		Role:     string(e.Role),
		JoinDate: e.JoinDate.Format("2006-01-02"),
	}
}

func toSummaryDTO(employeeID string, year int, month time.Month, sum leave.Summary) SummaryDTO {
	hours := make(map[string]map[string]int, len(sum))
	for emp, byType := range sum {
		m := make(map[string]int, len(byType))
		for t, h := range byType {
			m[string(t)] = h
		}
		hours[emp] = m
	}
	return SummaryDTO{
		EmployeeID: employeeID,
		Year:       year,
		Month:      int(month),
		Hours:      hours,
	}
}
