package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/llm"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// stubClient replays a canned completion and records the request it saw.
type stubClient struct {
	response string
	err      error
	lastReq  llm.Request
}

func (s *stubClient) Chat(ctx context.Context, req llm.Request, result any) error {
	s.lastReq = req
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.response), result)
}

func (s *stubClient) Model() string { return "stub-model" }

func newAdvisor(client llm.Client) *Service {
	return NewService(client, zap.NewNop())
}

func roster() []domain.Technician {
	return []domain.Technician{
		{ID: "tech-001", Name: "Alice Johnson", Expertise: []string{"Hardware", "Data Recovery"}, CurrentWorkload: 3},
		{ID: "tech-004", Name: "Diana Miller", Expertise: []string{"Software", "Printer Repair"}, CurrentWorkload: 1},
	}
}

func TestTroubleshoot(t *testing.T) {
	client := &stubClient{response: `{"troubleshootingSteps":"1. Restart the printer.\n2. Check the cable."}`}
	out, err := newAdvisor(client).Troubleshoot(context.Background(), TroubleshootInput{
		IssueDescription: "printer shows a paper jam error",
	})
	require.NoError(t, err)
	assert.Contains(t, out.TroubleshootingSteps, "Restart the printer")
	assert.Contains(t, client.lastReq.UserPrompt, "printer shows a paper jam error")
	assert.Equal(t, "troubleshooting_steps", client.lastReq.SchemaName)
}

func TestTroubleshootRejectsEmptyInput(t *testing.T) {
	_, err := newAdvisor(&stubClient{}).Troubleshoot(context.Background(), TroubleshootInput{})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}

func TestTroubleshootEmptyStepsIsAFailure(t *testing.T) {
	client := &stubClient{response: `{"troubleshootingSteps":"   "}`}
	_, err := newAdvisor(client).Troubleshoot(context.Background(), TroubleshootInput{
		IssueDescription: "laptop does not boot",
	})
	require.Error(t, err)
	assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
}

func TestModelErrorsAreClassified(t *testing.T) {
	t.Run("connectivity failure", func(t *testing.T) {
		client := &stubClient{err: errors.New("dial tcp: connection refused")}
		_, err := newAdvisor(client).Troubleshoot(context.Background(), TroubleshootInput{
			IssueDescription: "laptop does not boot",
		})
		require.Error(t, err)
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", apperrors.CodeOf(err))
	})

	t.Run("empty completion", func(t *testing.T) {
		client := &stubClient{err: llm.ErrNoOutput}
		_, err := newAdvisor(client).Categorize(context.Background(), CategorizeInput{
			ServiceRequestDescription: "screen flickers",
		})
		require.Error(t, err)
		assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
	})

	t.Run("schema mismatch", func(t *testing.T) {
		client := &stubClient{err: llm.ErrMalformedOutput}
		_, err := newAdvisor(client).Categorize(context.Background(), CategorizeInput{
			ServiceRequestDescription: "screen flickers",
		})
		require.Error(t, err)
		assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
	})
}

func TestCategorize(t *testing.T) {
	client := &stubClient{response: `{"category":"peripheral - printer","keyEntities":["Epson","paper jam"]}`}
	out, err := newAdvisor(client).Categorize(context.Background(), CategorizeInput{
		ServiceRequestDescription: "Epson printer reports a paper jam",
	})
	require.NoError(t, err)
	assert.Equal(t, "peripheral - printer", out.Category)
	assert.Equal(t, []string{"Epson", "paper jam"}, out.KeyEntities)
}

func TestCategorizeEmptyCategoryIsAFailure(t *testing.T) {
	client := &stubClient{response: `{"category":"","keyEntities":[]}`}
	_, err := newAdvisor(client).Categorize(context.Background(), CategorizeInput{
		ServiceRequestDescription: "screen flickers",
	})
	require.Error(t, err)
	assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
}

func TestSuggestTechnician(t *testing.T) {
	client := &stubClient{response: `{"suggestedTechnician":{"id":"tech-004","name":"Diana Miller","reasoning":"Printer expertise and the lowest workload."}}`}
	out, err := newAdvisor(client).SuggestTechnician(context.Background(), SuggestTechnicianInput{
		ServiceRequest: RequestSummary{
			DeviceType:       "Printer",
			IssueDescription: "paper jam that will not clear",
		},
		AvailableTechnicians: roster(),
	})
	require.NoError(t, err)
	assert.Equal(t, "tech-004", out.SuggestedTechnician.ID)
	assert.NotEmpty(t, out.SuggestedTechnician.Reasoning)

	// the prompt must carry the full roster with workloads
	assert.Contains(t, client.lastReq.UserPrompt, "Technician ID: tech-001")
	assert.Contains(t, client.lastReq.UserPrompt, "Current Workload: 1 open tickets")
	assert.Contains(t, client.lastReq.UserPrompt, "Expertise: Software, Printer Repair")
}

func TestSuggestTechnicianOutsideRosterIsRejected(t *testing.T) {
	client := &stubClient{response: `{"suggestedTechnician":{"id":"tech-999","name":"Nobody","reasoning":"made up"}}`}
	_, err := newAdvisor(client).SuggestTechnician(context.Background(), SuggestTechnicianInput{
		ServiceRequest:       RequestSummary{DeviceType: "Laptop", IssueDescription: "does not boot"},
		AvailableTechnicians: roster(),
	})
	require.Error(t, err)
	assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
}

func TestSuggestTechnicianMissingReasoningIsRejected(t *testing.T) {
	client := &stubClient{response: `{"suggestedTechnician":{"id":"tech-001","name":"Alice Johnson","reasoning":""}}`}
	_, err := newAdvisor(client).SuggestTechnician(context.Background(), SuggestTechnicianInput{
		ServiceRequest:       RequestSummary{DeviceType: "Laptop", IssueDescription: "does not boot"},
		AvailableTechnicians: roster(),
	})
	require.Error(t, err)
	assert.Equal(t, "MODEL_OUTPUT_INVALID", apperrors.CodeOf(err))
}

func TestSuggestTechnicianRequiresRoster(t *testing.T) {
	_, err := newAdvisor(&stubClient{}).SuggestTechnician(context.Background(), SuggestTechnicianInput{
		ServiceRequest: RequestSummary{DeviceType: "Laptop", IssueDescription: "does not boot"},
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}
