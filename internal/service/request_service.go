package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// ChangeNotifier signals live-feed subscribers after a durable write.
type ChangeNotifier interface {
	Notify(ctx context.Context)
}

// RequestService coordinates the service request lifecycle.
type RequestService struct {
	requests    repository.RequestRepository
	technicians repository.TechnicianRepository
	history     repository.HistoryRepository
	dispatcher  events.Dispatcher
	notifier    ChangeNotifier
	logger      *zap.Logger
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo    repository.RequestRepository
	TechnicianRepo repository.TechnicianRepository
	HistoryRepo    repository.HistoryRepository
	Dispatcher     events.Dispatcher
	Notifier       ChangeNotifier
	Logger         *zap.Logger
}

// CompletionDetails carries the billing fields required when a request is
// marked Completed.
type CompletionDetails struct {
	Cost         float64
	InvoiceNotes *string
}

// WorkNotesInput carries optional admin updates to in-flight work.
type WorkNotesInput struct {
	TechnicianNotes     *string
	EstimatedCompletion *time.Time
}

// AdminRequestFilter describes dashboard listing filters.
type AdminRequestFilter struct {
	Statuses      []domain.RequestStatus
	DeviceTypes   []domain.DeviceType
	TechnicianID  *string
	SearchTerm    *string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Limit         int
	Offset        int
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	return &RequestService{
		requests:    deps.RequestRepo,
		technicians: deps.TechnicianRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
	}
}

// Create validates the draft, assigns identity and timestamps, and returns the
// record immediately while the durable insert proceeds in the background. An
// insert failure is published as a request_write_failed event, never dropped.
func (s *RequestService) Create(ctx context.Context, userID string, draft domain.RequestDraft) (*domain.ServiceRequest, error) {
	if fieldErrs := draft.Validate(); len(fieldErrs) > 0 {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field] = fe.Message
		}
		return nil, apperrors.NewValidationError("invalid service request", details)
	}

	now := time.Now().UTC()
	request := &domain.ServiceRequest{
		ID:               uuid.NewString(),
		UserID:           userID,
		CustomerName:     strings.TrimSpace(draft.CustomerName),
		CustomerEmail:    strings.TrimSpace(draft.CustomerEmail),
		DeviceType:       draft.DeviceType,
		Brand:            strings.TrimSpace(draft.Brand),
		OSVersion:        strings.TrimSpace(draft.OSVersion),
		IssueDescription: strings.TrimSpace(draft.IssueDescription),
		ErrorMessages:    draft.ErrorMessages,
		Status:           domain.StatusPending,
		SubmittedAt:      now,
		UpdatedAt:        now,
		AppointmentDate:  draft.AppointmentDate,
	}

	persisted := *request
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.requests.Create(writeCtx, &persisted); err != nil {
			s.logger.Error("durable create failed",
				zap.String("request_id", persisted.ID),
				zap.Error(err))
			s.publishEvent(writeCtx, events.Event{
				Type:      events.EventRequestWriteFailed,
				RequestID: persisted.ID,
				ActorID:   &persisted.UserID,
				Payload: events.RequestWriteFailedPayload{
					Operation: "create",
					Reason:    err.Error(),
				},
			})
			return
		}
		s.publishEvent(writeCtx, events.Event{
			Type:      events.EventRequestCreated,
			RequestID: persisted.ID,
			ActorID:   &persisted.UserID,
			Payload: events.RequestCreatedPayload{
				DeviceType:   persisted.DeviceType,
				CustomerName: persisted.CustomerName,
				Status:       persisted.Status,
			},
		})
		s.notify(writeCtx)
	}()

	return request, nil
}

// UpdateStatus applies an administrator-initiated transition. The transition
// table is checked before any write; the repository re-checks it inside the
// UPDATE so a concurrent writer cannot bypass the state machine.
func (s *RequestService) UpdateStatus(ctx context.Context, adminID, requestID string, newStatus domain.RequestStatus, completion *CompletionDetails) (*domain.ServiceRequest, error) {
	if !newStatus.IsValid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(newStatus)})
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if !domain.CanTransition(request.Status, newStatus) {
		return nil, apperrors.NewIllegalTransition(string(request.Status), string(newStatus))
	}

	change := repository.StatusChange{
		Status:    newStatus,
		UpdatedAt: time.Now().UTC(),
	}
	if newStatus == domain.StatusCompleted {
		if completion == nil {
			return nil, apperrors.NewValidationError("completion requires a final cost", nil)
		}
		if completion.Cost < 0 {
			return nil, apperrors.NewValidationError("cost must not be negative", nil)
		}
		cost := completion.Cost
		change.Cost = &cost
		change.InvoiceNotes = completion.InvoiceNotes
	}

	if err := s.requests.UpdateStatus(ctx, requestID, domain.TransitionSources(newStatus), change); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewIllegalTransition(string(request.Status), string(newStatus))
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := request.Status
	request.Status = newStatus
	request.UpdatedAt = change.UpdatedAt
	if change.Cost != nil {
		request.Cost = change.Cost
		request.InvoiceNotes = change.InvoiceNotes
	}

	s.recordStatusChange(ctx, adminID, request.ID, oldStatus, newStatus)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: request.ID,
		ActorID:   &adminID,
		Payload: events.RequestStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Cost:      change.Cost,
		},
	})
	s.notify(ctx)
	return request, nil
}

// AssignTechnician is the explicit confirmation step that follows an advisory
// suggestion; only this call mutates the assigned-technician field.
func (s *RequestService) AssignTechnician(ctx context.Context, adminID, requestID, technicianID string) (*domain.ServiceRequest, error) {
	technician, err := s.technicians.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if request.Status.IsTerminal() {
		return nil, apperrors.NewConflict("request already finished", map[string]any{"status": string(request.Status)})
	}

	updatedAt := time.Now().UTC()
	if err := s.requests.AssignTechnician(ctx, requestID, technician.ID, updatedAt); err != nil {
		return nil, apperrors.MapError(err)
	}

	oldTechnician := request.TechnicianID
	request.TechnicianID = &technician.ID
	request.UpdatedAt = updatedAt

	s.recordTechnicianChange(ctx, adminID, request.ID, oldTechnician, request.TechnicianID)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestTechnicianAssigned,
		RequestID: request.ID,
		ActorID:   &adminID,
		Payload: events.RequestTechnicianAssignedPayload{
			TechnicianID: technician.ID,
		},
	})
	s.notify(ctx)
	return request, nil
}

// UpdateWorkNotes updates technician notes and the estimated completion date.
func (s *RequestService) UpdateWorkNotes(ctx context.Context, adminID, requestID string, input WorkNotesInput) (*domain.ServiceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	updatedAt := time.Now().UTC()
	if err := s.requests.UpdateWorkNotes(ctx, requestID, input.TechnicianNotes, input.EstimatedCompletion, updatedAt); err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.TechnicianNotes != nil {
		request.TechnicianNotes = input.TechnicianNotes
	}
	if input.EstimatedCompletion != nil {
		request.EstimatedCompletion = input.EstimatedCompletion
	}
	request.UpdatedAt = updatedAt
	s.notify(ctx)
	return request, nil
}

// GetForUser fetches a request ensuring ownership.
func (s *RequestService) GetForUser(ctx context.Context, userID, requestID string) (*domain.ServiceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if request.UserID != userID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return request, nil
}

// ListForUser returns the caller's own requests.
func (s *RequestService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.ServiceRequest, error) {
	result, err := s.requests.ListWithFilter(ctx, repository.RequestFilter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// GetForAdmin fetches any request.
func (s *RequestService) GetForAdmin(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

// ListForAdmin returns requests matching the dashboard filter.
func (s *RequestService) ListForAdmin(ctx context.Context, filter AdminRequestFilter) ([]domain.ServiceRequest, error) {
	result, err := s.requests.ListWithFilter(ctx, repository.RequestFilter{
		TechnicianID:  filter.TechnicianID,
		Statuses:      filter.Statuses,
		DeviceTypes:   filter.DeviceTypes,
		SearchTerm:    filter.SearchTerm,
		SubmittedFrom: filter.SubmittedFrom,
		SubmittedTo:   filter.SubmittedTo,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// ListTechnicians returns the roster with per-technician open workload.
func (s *RequestService) ListTechnicians(ctx context.Context) ([]domain.Technician, error) {
	technicians, err := s.technicians.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return technicians, nil
}

// ListHistory returns audit entries for a request.
func (s *RequestService) ListHistory(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	if s.history == nil {
		return []domain.RequestHistory{}, nil
	}
	entries, err := s.history.ListByRequest(ctx, requestID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Revenue aggregates billing over completed requests.
func (s *RequestService) Revenue(ctx context.Context) (repository.RevenueSummary, error) {
	summary, err := s.requests.Revenue(ctx)
	if err != nil {
		return repository.RevenueSummary{}, apperrors.MapError(err)
	}
	return summary, nil
}

func (s *RequestService) recordStatusChange(ctx context.Context, actorID, requestID string, oldStatus, newStatus domain.RequestStatus) {
	if s.history == nil {
		return
	}
	entry := &domain.RequestHistory{
		RequestID:   requestID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": newStatus},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record status change failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *RequestService) recordTechnicianChange(ctx context.Context, actorID, requestID string, oldTechnician, newTechnician *string) {
	if s.history == nil {
		return
	}
	entry := &domain.RequestHistory{
		RequestID:   requestID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeTechnician,
		OldValue:    map[string]any{"technician_id": oldTechnician},
		NewValue:    map[string]any{"technician_id": newTechnician},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record technician change failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *RequestService) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx)
}
