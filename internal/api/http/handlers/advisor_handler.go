package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/advisor"
	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// AdvisorHandler exposes the admin-facing model helpers: categorization and
// technician suggestion. Both are read-only; neither mutates any request.
type AdvisorHandler struct {
	advisor  *advisor.Service
	requests *service.RequestService
}

// NewAdvisorHandler constructs the handler.
func NewAdvisorHandler(adv *advisor.Service, requests *service.RequestService) *AdvisorHandler {
	return &AdvisorHandler{advisor: adv, requests: requests}
}

// Categorize derives an open-vocabulary category and key entities from a
// request description.
func (h *AdvisorHandler) Categorize(c *fiber.Ctx) error {
	var req dto.CategorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	out, err := h.advisor.Categorize(c.UserContext(), advisor.CategorizeInput{
		ServiceRequestDescription: req.ServiceRequestDescription,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CategorizeResponse{
		Category:    out.Category,
		KeyEntities: out.KeyEntities,
	}})
}

// SuggestTechnician loads the stored request and the current roster, then asks
// the model for a single recommendation. The response is advisory; assignment
// happens only through the explicit assign endpoint.
func (h *AdvisorHandler) SuggestTechnician(c *fiber.Ctx) error {
	var req dto.SuggestTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.RequestID == "" {
		return apperrors.NewValidationError("request_id is required", nil)
	}

	request, err := h.requests.GetForAdmin(c.UserContext(), req.RequestID)
	if err != nil {
		return err
	}
	technicians, err := h.requests.ListTechnicians(c.UserContext())
	if err != nil {
		return err
	}

	out, err := h.advisor.SuggestTechnician(c.UserContext(), advisor.SuggestTechnicianInput{
		ServiceRequest: advisor.RequestSummary{
			DeviceType:       string(request.DeviceType),
			IssueDescription: request.IssueDescription,
			OSVersion:        &request.OSVersion,
			ErrorMessages:    request.ErrorMessages,
		},
		AvailableTechnicians: technicians,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SuggestTechnicianResponse{
		ID:        out.SuggestedTechnician.ID,
		Name:      out.SuggestedTechnician.Name,
		Reasoning: out.SuggestedTechnician.Reasoning,
	}})
}
