package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/advisor"
	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// RequestsHandler is the customer-facing surface: submitting requests, viewing
// one's own, and the pre-submission troubleshooting helper.
type RequestsHandler struct {
	requests *service.RequestService
	advisor  *advisor.Service
}

// NewRequestsHandler constructs the handler.
func NewRequestsHandler(requests *service.RequestService, adv *advisor.Service) *RequestsHandler {
	return &RequestsHandler{requests: requests, advisor: adv}
}

// Create submits a new service request. The response is returned as soon as
// the request is validated; the durable write completes in the background.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	draft := domain.RequestDraft{
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		DeviceType:       domain.DeviceType(req.DeviceType),
		Brand:            req.Brand,
		OSVersion:        req.OSVersion,
		IssueDescription: req.IssueDescription,
		ErrorMessages:    req.ErrorMessages,
		AppointmentDate:  req.AppointmentDate,
	}

	created, err := h.requests.Create(c.UserContext(), principal.User.ID, draft)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.FromRequest(created)})
}

// List returns the caller's own requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	items, err := h.requests.ListForUser(c.UserContext(), principal.User.ID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequests(items), "count": len(items)})
}

// Get returns one of the caller's requests by id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	request, err := h.requests.GetForUser(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// Troubleshoot returns model-generated self-help steps for an issue
// description, without creating a request.
func (h *RequestsHandler) Troubleshoot(c *fiber.Ctx) error {
	var req dto.TroubleshootRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	out, err := h.advisor.Troubleshoot(c.UserContext(), advisor.TroubleshootInput{
		IssueDescription: req.IssueDescription,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TroubleshootResponse{
		TroubleshootingSteps: out.TroubleshootingSteps,
	}})
}
