package domain

import (
	"net/mail"
	"strings"
	"time"
)

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	StatusPending       RequestStatus = "Pending"
	StatusScheduled     RequestStatus = "Scheduled"
	StatusDeclined      RequestStatus = "Declined"
	StatusInProgress    RequestStatus = "In Progress"
	StatusAwaitingParts RequestStatus = "Awaiting Parts"
	StatusCompleted     RequestStatus = "Completed"
	StatusCancelled     RequestStatus = "Cancelled"
)

// DeviceType enumerates the categories accepted on the intake form.
type DeviceType string

const (
	DeviceLaptop     DeviceType = "Laptop"
	DeviceDesktop    DeviceType = "Desktop"
	DevicePrinter    DeviceType = "Printer"
	DeviceSoftware   DeviceType = "Software"
	DeviceSmartphone DeviceType = "Smartphone"
	DeviceTablet     DeviceType = "Tablet"
	DeviceOther      DeviceType = "Other"
)

// ServiceRequest is the aggregate for customer repair requests.
type ServiceRequest struct {
	ID                  string
	UserID              string
	CustomerName        string
	CustomerEmail       string
	DeviceType          DeviceType
	Brand               string
	OSVersion           string
	IssueDescription    string
	ErrorMessages       *string
	Status              RequestStatus
	SubmittedAt         time.Time
	UpdatedAt           time.Time
	TechnicianID        *string
	TechnicianNotes     *string
	EstimatedCompletion *time.Time
	AppointmentDate     *time.Time
	Cost                *float64
	InvoiceNotes        *string
}

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether s is a member of the closed status enum.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusDeclined, StatusInProgress,
		StatusAwaitingParts, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether d is a member of the closed device enum.
func (d DeviceType) IsValid() bool {
	switch d {
	case DeviceLaptop, DeviceDesktop, DevicePrinter, DeviceSoftware,
		DeviceSmartphone, DeviceTablet, DeviceOther:
		return true
	}
	return false
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:       {StatusScheduled, StatusDeclined, StatusInProgress, StatusCompleted, StatusCancelled},
	StatusScheduled:     {StatusInProgress, StatusCancelled},
	StatusDeclined:      {StatusCancelled},
	StatusInProgress:    {StatusAwaitingParts, StatusCompleted, StatusCancelled},
	StatusAwaitingParts: {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusCompleted:     {},
	StatusCancelled:     {},
}

// CanTransition reports whether moving from current to next is allowed.
func CanTransition(current, next RequestStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which next is reachable.
// The storage layer embeds this set in its UPDATE guard.
func TransitionSources(next RequestStatus) []RequestStatus {
	var sources []RequestStatus
	for from, targets := range allowedTransitions {
		for _, candidate := range targets {
			if candidate == next {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// RequestDraft carries the intake form fields prior to validation.
type RequestDraft struct {
	CustomerName     string
	CustomerEmail    string
	DeviceType       DeviceType
	Brand            string
	OSVersion        string
	IssueDescription string
	ErrorMessages    *string
	AppointmentDate  *time.Time
}

// FieldError describes a single failed intake constraint.
type FieldError struct {
	Field   string
	Message string
}

// Validate applies the intake form constraints and returns every violation.
func (d RequestDraft) Validate() []FieldError {
	var errs []FieldError
	if len(strings.TrimSpace(d.CustomerName)) < 2 {
		errs = append(errs, FieldError{Field: "customer_name", Message: "must be at least 2 characters"})
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(d.CustomerEmail)); err != nil {
		errs = append(errs, FieldError{Field: "customer_email", Message: "must be a well-formed email address"})
	}
	if !d.DeviceType.IsValid() {
		errs = append(errs, FieldError{Field: "device_type", Message: "must be one of the supported device categories"})
	}
	if strings.TrimSpace(d.Brand) == "" {
		errs = append(errs, FieldError{Field: "brand", Message: "is required"})
	}
	if len(strings.TrimSpace(d.OSVersion)) < 2 {
		errs = append(errs, FieldError{Field: "os_version", Message: "must be at least 2 characters"})
	}
	if len(strings.TrimSpace(d.IssueDescription)) < 20 {
		errs = append(errs, FieldError{Field: "issue_description", Message: "must be at least 20 characters"})
	}
	return errs
}
