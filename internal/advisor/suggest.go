package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/llm"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// RequestSummary is the slice of a service request the model sees.
type RequestSummary struct {
	DeviceType       string
	IssueDescription string
	OSVersion        *string
	ErrorMessages    *string
}

// SuggestTechnicianInput pairs a request summary with the full roster.
type SuggestTechnicianInput struct {
	ServiceRequest       RequestSummary
	AvailableTechnicians []domain.Technician
}

// SuggestedTechnician is the model's single choice with its justification.
type SuggestedTechnician struct {
	ID        string `json:"id" jsonschema:"description=Unique identifier of the suggested technician"`
	Name      string `json:"name" jsonschema:"description=Name of the suggested technician"`
	Reasoning string `json:"reasoning" jsonschema:"description=Explanation of why this technician was selected"`
}

// SuggestTechnicianOutput wraps the suggestion.
type SuggestTechnicianOutput struct {
	SuggestedTechnician SuggestedTechnician `json:"suggestedTechnician"`
}

const suggestSystemPrompt = `You are an expert system designed to assign the most suitable technician to a service request.
Your goal is to suggest ONE technician from the provided list who best matches the service request requirements and has a manageable workload.
Find the technician whose expertise best aligns with the issue and who has the lowest current workload among suitable candidates.
Provide a clear and concise reasoning for your choice, explicitly mentioning how their expertise matches the request and why their workload makes them a good choice.`

// SuggestTechnician asks the model to pick one technician for the request.
// All ranking is delegated to the model; no local scoring happens here. The
// suggestion is advisory only: assignment requires a separate, explicit
// confirmation through the request lifecycle service.
func (s *Service) SuggestTechnician(ctx context.Context, input SuggestTechnicianInput) (*SuggestTechnicianOutput, error) {
	if strings.TrimSpace(input.ServiceRequest.IssueDescription) == "" {
		return nil, apperrors.NewValidationError("issue description is required", nil)
	}
	if len(input.AvailableTechnicians) == 0 {
		return nil, apperrors.NewValidationError("at least one technician is required", nil)
	}

	var output SuggestTechnicianOutput
	err := s.client.Chat(ctx, llm.Request{
		SystemPrompt: suggestSystemPrompt,
		UserPrompt:   renderSuggestPrompt(input),
		SchemaName:   "suggested_technician",
		Schema:       llm.GenerateSchema[SuggestTechnicianOutput](),
	}, &output)
	if err != nil {
		return nil, mapModelError("suggest technician", err)
	}

	suggested := output.SuggestedTechnician
	if strings.TrimSpace(suggested.ID) == "" || strings.TrimSpace(suggested.Reasoning) == "" {
		return nil, apperrors.NewModelOutputError("suggestion missing technician id or reasoning", nil)
	}
	if !rosterContains(input.AvailableTechnicians, suggested.ID) {
		return nil, apperrors.NewModelOutputError(
			fmt.Sprintf("suggested technician %q is not in the provided roster", suggested.ID), nil)
	}

	s.logger.Debug("technician suggested",
		zap.String("technician_id", suggested.ID),
		zap.String("model", s.client.Model()))
	return &output, nil
}

func renderSuggestPrompt(input SuggestTechnicianInput) string {
	var b strings.Builder
	b.WriteString("Here is the service request details:\n")
	fmt.Fprintf(&b, "Device Type: %s\n", input.ServiceRequest.DeviceType)
	fmt.Fprintf(&b, "Issue Description: %s\n", input.ServiceRequest.IssueDescription)
	if input.ServiceRequest.OSVersion != nil && *input.ServiceRequest.OSVersion != "" {
		fmt.Fprintf(&b, "OS Version: %s\n", *input.ServiceRequest.OSVersion)
	}
	if input.ServiceRequest.ErrorMessages != nil && *input.ServiceRequest.ErrorMessages != "" {
		fmt.Fprintf(&b, "Error Messages: %s\n", *input.ServiceRequest.ErrorMessages)
	}

	b.WriteString("\nHere is a list of available technicians, their expertise, and current workload:\n")
	for _, tech := range input.AvailableTechnicians {
		fmt.Fprintf(&b, "- Technician ID: %s\n", tech.ID)
		fmt.Fprintf(&b, "  Name: %s\n", tech.Name)
		fmt.Fprintf(&b, "  Expertise: %s\n", strings.Join(tech.Expertise, ", "))
		fmt.Fprintf(&b, "  Current Workload: %d open tickets\n", tech.CurrentWorkload)
	}
	return b.String()
}

func rosterContains(roster []domain.Technician, id string) bool {
	for _, tech := range roster {
		if tech.ID == id {
			return true
		}
	}
	return false
}
