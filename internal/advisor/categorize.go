package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/llm"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// CategorizeInput carries the request description to classify.
type CategorizeInput struct {
	ServiceRequestDescription string
}

// CategorizeOutput holds the open-vocabulary category and extracted entities.
type CategorizeOutput struct {
	Category    string   `json:"category" jsonschema:"description=The categorized issue type"`
	KeyEntities []string `json:"keyEntities" jsonschema:"description=Key entities or keywords extracted from the description"`
}

const categorizeSystemPrompt = `You are an AI assistant specialized in categorizing IT service requests and extracting essential information.
Your task is to analyze the provided service request description and assign it a category, along with identifying key entities mentioned.

Here are some example categories you might use:
- 'hardware - laptop screen'
- 'hardware - desktop CPU'
- 'software - OS corruption'
- 'software - network connectivity'
- 'software - application malfunction'
- 'peripheral - printer'
- 'peripheral - monitor'
- 'other - general inquiry'`

// Categorize assigns a category label and extracts key entities. The category
// vocabulary is open; the model may coin new labels.
func (s *Service) Categorize(ctx context.Context, input CategorizeInput) (*CategorizeOutput, error) {
	if strings.TrimSpace(input.ServiceRequestDescription) == "" {
		return nil, apperrors.NewValidationError("service request description is required", nil)
	}

	var output CategorizeOutput
	err := s.client.Chat(ctx, llm.Request{
		SystemPrompt: categorizeSystemPrompt,
		UserPrompt: fmt.Sprintf("Categorize the following service request description and extract key entities:\n\nService Request Description: %s",
			input.ServiceRequestDescription),
		SchemaName: "categorized_request",
		Schema:     llm.GenerateSchema[CategorizeOutput](),
	}, &output)
	if err != nil {
		return nil, mapModelError("categorize", err)
	}
	if strings.TrimSpace(output.Category) == "" {
		return nil, apperrors.NewModelOutputError("categorize returned empty category", nil)
	}

	s.logger.Debug("request categorized",
		zap.String("category", output.Category),
		zap.Int("entities", len(output.KeyEntities)))
	return &output, nil
}
