package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/feed"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// AdminRequestsHandler is the dashboard surface: listing and inspecting all
// requests, driving the status state machine, assignment, and the live stream.
type AdminRequestsHandler struct {
	requests *service.RequestService
	feed     *feed.Feed
	logger   *zap.Logger
}

// NewAdminRequestsHandler constructs the handler.
func NewAdminRequestsHandler(requests *service.RequestService, liveFeed *feed.Feed, logger *zap.Logger) *AdminRequestsHandler {
	return &AdminRequestsHandler{requests: requests, feed: liveFeed, logger: logger}
}

// List returns requests matching the dashboard filter.
func (h *AdminRequestsHandler) List(c *fiber.Ctx) error {
	filter, err := parseAdminFilter(c)
	if err != nil {
		return err
	}

	items, err := h.requests.ListForAdmin(c.UserContext(), service.AdminRequestFilter{
		Statuses:      filter.Statuses,
		DeviceTypes:   filter.DeviceTypes,
		TechnicianID:  filter.TechnicianID,
		SearchTerm:    filter.SearchTerm,
		SubmittedFrom: filter.SubmittedFrom,
		SubmittedTo:   filter.SubmittedTo,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequests(items), "count": len(items)})
}

// Get returns any request by id.
func (h *AdminRequestsHandler) Get(c *fiber.Ctx) error {
	request, err := h.requests.GetForAdmin(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// UpdateStatus applies a state-machine transition. Completion carries the
// final cost and optional invoice notes.
func (h *AdminRequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	adminID, err := requireAdminID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	var completion *service.CompletionDetails
	if req.Cost != nil || req.InvoiceNotes != nil {
		completion = &service.CompletionDetails{InvoiceNotes: req.InvoiceNotes}
		if req.Cost != nil {
			completion.Cost = *req.Cost
		}
	}

	request, err := h.requests.UpdateStatus(c.UserContext(), adminID, c.Params("id"),
		domain.RequestStatus(req.Status), completion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// AssignTechnician confirms an assignment. Advisory suggestions never reach
// this point on their own.
func (h *AdminRequestsHandler) AssignTechnician(c *fiber.Ctx) error {
	adminID, err := requireAdminID(c)
	if err != nil {
		return err
	}

	var req dto.AssignTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.TechnicianID) == "" {
		return apperrors.NewValidationError("technician_id is required", nil)
	}

	request, err := h.requests.AssignTechnician(c.UserContext(), adminID, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// UpdateWorkNotes updates technician notes and the estimated completion date.
func (h *AdminRequestsHandler) UpdateWorkNotes(c *fiber.Ctx) error {
	adminID, err := requireAdminID(c)
	if err != nil {
		return err
	}

	var req dto.WorkNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.TechnicianNotes == nil && req.EstimatedCompletion == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}

	request, err := h.requests.UpdateWorkNotes(c.UserContext(), adminID, c.Params("id"), service.WorkNotesInput{
		TechnicianNotes:     req.TechnicianNotes,
		EstimatedCompletion: req.EstimatedCompletion,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// History returns the audit trail for one request.
func (h *AdminRequestsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	entries, err := h.requests.ListHistory(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}

	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}

// Technicians lists the roster with derived workloads.
func (h *AdminRequestsHandler) Technicians(c *fiber.Ctx) error {
	technicians, err := h.requests.ListTechnicians(c.UserContext())
	if err != nil {
		return err
	}

	items := make([]dto.TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, dto.FromTechnician(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}

// Revenue aggregates billing over completed requests.
func (h *AdminRequestsHandler) Revenue(c *fiber.Ctx) error {
	summary, err := h.requests.Revenue(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RevenueResponse{
		CompletedCount: summary.CompletedCount,
		TotalRevenue:   summary.TotalRevenue,
	}})
}

// Stream pushes full snapshots of matching requests over server-sent events.
// Each durable write triggers one snapshot; closing the connection tears the
// subscription down.
func (h *AdminRequestsHandler) Stream(c *fiber.Ctx) error {
	filter, err := parseAdminFilter(c)
	if err != nil {
		return err
	}

	// The subscription outlives the handler, so it runs on its own context
	// and is released when the client disconnects.
	sub, err := h.feed.Subscribe(context.Background(), filter)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Stop()
		for {
			select {
			case snapshot, ok := <-sub.Snapshots():
				if !ok {
					return
				}
				payload, err := json.Marshal(dto.FromRequests(snapshot))
				if err != nil {
					h.logger.Error("stream encode failed", zap.Error(err))
					return
				}
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			case streamErr := <-sub.Errs():
				domainErr := apperrors.ToDomainError(streamErr)
				fmt.Fprintf(w, "event: error\ndata: {\"code\":%q,\"message\":%q}\n\n",
					domainErr.Code, domainErr.Message)
				_ = w.Flush()
				return
			}
		}
	}))
	return nil
}

func requireAdminID(c *fiber.Ctx) (string, error) {
	principal, ok := authPrincipal(c)
	if !ok {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseAdminFilter(c *fiber.Ctx) (repository.RequestFilter, error) {
	filter := repository.RequestFilter{
		Limit:  c.QueryInt("limit", 100),
		Offset: c.QueryInt("offset", 0),
	}

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.RequestStatus(strings.TrimSpace(part))
			if !status.IsValid() {
				return repository.RequestFilter{}, apperrors.NewValidationError(
					"unknown status", map[string]any{"status": string(status)})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := c.Query("device_type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			device := domain.DeviceType(strings.TrimSpace(part))
			if !device.IsValid() {
				return repository.RequestFilter{}, apperrors.NewValidationError(
					"unknown device type", map[string]any{"device_type": string(device)})
			}
			filter.DeviceTypes = append(filter.DeviceTypes, device)
		}
	}
	if technicianID := c.Query("technician_id"); technicianID != "" {
		filter.TechnicianID = &technicianID
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		filter.SearchTerm = &term
	}
	if raw := c.Query("submitted_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return repository.RequestFilter{}, apperrors.NewValidationError(
				"submitted_from must be RFC3339", nil)
		}
		filter.SubmittedFrom = &from
	}
	if raw := c.Query("submitted_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return repository.RequestFilter{}, apperrors.NewValidationError(
				"submitted_to must be RFC3339", nil)
		}
		filter.SubmittedTo = &to
	}
	return filter, nil
}
