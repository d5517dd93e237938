package dto

import (
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	CustomerName     string     `json:"customer_name"`
	CustomerEmail    string     `json:"customer_email"`
	DeviceType       string     `json:"device_type"`
	Brand            string     `json:"brand"`
	OSVersion        string     `json:"os_version"`
	IssueDescription string     `json:"issue_description"`
	ErrorMessages    *string    `json:"error_messages,omitempty"`
	AppointmentDate  *time.Time `json:"appointment_date,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status       string   `json:"status"`
	Cost         *float64 `json:"cost,omitempty"`
	InvoiceNotes *string  `json:"invoice_notes,omitempty"`
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// WorkNotesRequest payload.
type WorkNotesRequest struct {
	TechnicianNotes     *string    `json:"technician_notes,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// RequestResponse is the full service request representation.
type RequestResponse struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	CustomerName        string               `json:"customer_name"`
	CustomerEmail       string               `json:"customer_email"`
	DeviceType          domain.DeviceType    `json:"device_type"`
	Brand               string               `json:"brand"`
	OSVersion           string               `json:"os_version"`
	IssueDescription    string               `json:"issue_description"`
	ErrorMessages       *string              `json:"error_messages,omitempty"`
	Status              domain.RequestStatus `json:"status"`
	SubmittedAt         time.Time            `json:"submitted_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	TechnicianID        *string              `json:"technician_id,omitempty"`
	TechnicianNotes     *string              `json:"technician_notes,omitempty"`
	EstimatedCompletion *time.Time           `json:"estimated_completion,omitempty"`
	AppointmentDate     *time.Time           `json:"appointment_date,omitempty"`
	Cost                *float64             `json:"cost,omitempty"`
	InvoiceNotes        *string              `json:"invoice_notes,omitempty"`
}

// TechnicianResponse is a roster entry with its derived workload.
type TechnicianResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Expertise       []string `json:"expertise"`
	CurrentWorkload int      `json:"current_workload"`
}

// RevenueResponse aggregates completed billing.
type RevenueResponse struct {
	CompletedCount int64   `json:"completed_count"`
	TotalRevenue   float64 `json:"total_revenue"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID          string                   `json:"id"`
	ChangeType  domain.RequestChangeType `json:"change_type"`
	ChangedByID *string                  `json:"changed_by,omitempty"`
	OldValue    map[string]any           `json:"old_value"`
	NewValue    map[string]any           `json:"new_value"`
	CreatedAt   time.Time                `json:"created_at"`
}

// FromRequest maps a domain record to its response shape.
func FromRequest(request *domain.ServiceRequest) RequestResponse {
	return RequestResponse{
		ID:                  request.ID,
		UserID:              request.UserID,
		CustomerName:        request.CustomerName,
		CustomerEmail:       request.CustomerEmail,
		DeviceType:          request.DeviceType,
		Brand:               request.Brand,
		OSVersion:           request.OSVersion,
		IssueDescription:    request.IssueDescription,
		ErrorMessages:       request.ErrorMessages,
		Status:              request.Status,
		SubmittedAt:         request.SubmittedAt,
		UpdatedAt:           request.UpdatedAt,
		TechnicianID:        request.TechnicianID,
		TechnicianNotes:     request.TechnicianNotes,
		EstimatedCompletion: request.EstimatedCompletion,
		AppointmentDate:     request.AppointmentDate,
		Cost:                request.Cost,
		InvoiceNotes:        request.InvoiceNotes,
	}
}

// FromRequests maps a slice of domain records.
func FromRequests(requests []domain.ServiceRequest) []RequestResponse {
	items := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, FromRequest(&requests[i]))
	}
	return items
}

// FromTechnician maps a roster entry.
func FromTechnician(tech *domain.Technician) TechnicianResponse {
	return TechnicianResponse{
		ID:              tech.ID,
		Name:            tech.Name,
		Expertise:       tech.Expertise,
		CurrentWorkload: tech.CurrentWorkload,
	}
}
