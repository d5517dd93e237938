// Package advisor implements the AI-assisted helper functions: troubleshooting
// suggestions, request categorization, and technician recommendation. Each is
// a stateless prompt-templated call with a declared output schema; malformed or
// empty model output is a hard failure, never a degraded default, and no call
// is retried here.
package advisor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/llm"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// Service bundles the advisory functions around one model client.
type Service struct {
	client llm.Client
	logger *zap.Logger
}

// NewService constructs the advisor.
func NewService(client llm.Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// mapModelError classifies a failed model call: schema/empty-output problems
// become MODEL_OUTPUT_INVALID, anything else is treated as connectivity.
func mapModelError(call string, err error) error {
	if errors.Is(err, llm.ErrNoOutput) || errors.Is(err, llm.ErrMalformedOutput) {
		return apperrors.NewModelOutputError(call+" returned invalid output", err)
	}
	return apperrors.NewUpstreamUnavailable("model", err)
}
