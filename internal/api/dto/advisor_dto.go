package dto

// TroubleshootRequest payload.
type TroubleshootRequest struct {
	IssueDescription string `json:"issue_description"`
}

// TroubleshootResponse payload.
type TroubleshootResponse struct {
	TroubleshootingSteps string `json:"troubleshooting_steps"`
}

// CategorizeRequest payload.
type CategorizeRequest struct {
	ServiceRequestDescription string `json:"service_request_description"`
}

// CategorizeResponse payload.
type CategorizeResponse struct {
	Category    string   `json:"category"`
	KeyEntities []string `json:"key_entities"`
}

// SuggestTechnicianRequest payload. The roster is loaded server-side; the
// caller only identifies the request to triage.
type SuggestTechnicianRequest struct {
	RequestID string `json:"request_id"`
}

// SuggestTechnicianResponse payload.
type SuggestTechnicianResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reasoning string `json:"reasoning"`
}
