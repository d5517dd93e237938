package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/llm"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// TroubleshootInput carries the customer's issue description.
type TroubleshootInput struct {
	IssueDescription string
}

// TroubleshootOutput is the model's remediation advice.
type TroubleshootOutput struct {
	TroubleshootingSteps string `json:"troubleshootingSteps" jsonschema:"description=Markdown numbered list of troubleshooting steps"`
}

const troubleshootSystemPrompt = `You are an expert technical support assistant for computer and laptop hardware and software issues.
Your goal is to provide concise, easy-to-follow troubleshooting steps or common solutions to customers based on their issue description.

Instructions:
1. Analyze the provided issue description.
2. Generate a list of 3-5 troubleshooting steps or common solutions that the customer can try.
3. Format the steps as a numbered markdown list.
4. If the issue seems complex or requires professional intervention, include a concluding remark advising them to proceed with a service request if the steps don't work.`

// Troubleshoot generates candidate remediation steps for an issue. Purely
// advisory; it never blocks request submission.
func (s *Service) Troubleshoot(ctx context.Context, input TroubleshootInput) (*TroubleshootOutput, error) {
	if strings.TrimSpace(input.IssueDescription) == "" {
		return nil, apperrors.NewValidationError("issue description is required", nil)
	}

	var output TroubleshootOutput
	err := s.client.Chat(ctx, llm.Request{
		SystemPrompt: troubleshootSystemPrompt,
		UserPrompt:   fmt.Sprintf("Issue Description: %s\n\nTroubleshooting Steps:", input.IssueDescription),
		SchemaName:   "troubleshooting_steps",
		Schema:       llm.GenerateSchema[TroubleshootOutput](),
	}, &output)
	if err != nil {
		return nil, mapModelError("troubleshoot", err)
	}
	if strings.TrimSpace(output.TroubleshootingSteps) == "" {
		return nil, apperrors.NewModelOutputError("troubleshoot returned empty steps", nil)
	}

	s.logger.Debug("troubleshooting suggestion generated", zap.String("model", s.client.Model()))
	return &output, nil
}
