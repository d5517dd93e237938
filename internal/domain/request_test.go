package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{StatusPending, StatusScheduled, true},
		{StatusPending, StatusDeclined, true},
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusAwaitingParts, false},

		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusScheduled, StatusDeclined, false},

		{StatusDeclined, StatusCancelled, true},
		{StatusDeclined, StatusScheduled, false},
		{StatusDeclined, StatusInProgress, false},

		{StatusInProgress, StatusAwaitingParts, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},

		{StatusAwaitingParts, StatusInProgress, true},
		{StatusAwaitingParts, StatusCompleted, true},
		{StatusAwaitingParts, StatusCancelled, true},
		{StatusAwaitingParts, StatusScheduled, false},

		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusPending, false},
		// a transition to the current status is still a transition
		{StatusCancelled, StatusCancelled, false},
		{StatusCompleted, StatusCompleted, false},
	}

	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		assert.Equalf(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, terminal := range []RequestStatus{StatusCompleted, StatusCancelled} {
		require.True(t, terminal.IsTerminal())
		for _, next := range []RequestStatus{
			StatusPending, StatusScheduled, StatusDeclined, StatusInProgress,
			StatusAwaitingParts, StatusCompleted, StatusCancelled,
		} {
			assert.Falsef(t, CanTransition(terminal, next), "%s -> %s", terminal, next)
		}
	}
}

func TestTransitionSources(t *testing.T) {
	sources := TransitionSources(StatusCompleted)
	assert.ElementsMatch(t, []RequestStatus{StatusPending, StatusInProgress, StatusAwaitingParts}, sources)

	sources = TransitionSources(StatusInProgress)
	assert.ElementsMatch(t, []RequestStatus{StatusPending, StatusScheduled, StatusAwaitingParts}, sources)

	assert.Empty(t, TransitionSources(StatusPending), "nothing transitions back to Pending")
}

func TestStatusIsValid(t *testing.T) {
	assert.True(t, StatusAwaitingParts.IsValid())
	assert.False(t, RequestStatus("Exploded").IsValid())
	assert.False(t, RequestStatus("").IsValid())
}

func validDraft() RequestDraft {
	return RequestDraft{
		CustomerName:     "Jo Ann",
		CustomerEmail:    "jo.ann@example.com",
		DeviceType:       DevicePrinter,
		Brand:            "Epson",
		OSVersion:        "Windows 11",
		IssueDescription: "Printer reports a paper jam but there is no paper stuck anywhere.",
	}
}

func TestRequestDraftValidate(t *testing.T) {
	t.Run("valid draft has no errors", func(t *testing.T) {
		assert.Empty(t, validDraft().Validate())
	})

	t.Run("single character name rejected", func(t *testing.T) {
		draft := validDraft()
		draft.CustomerName = "J"
		errs := draft.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "customer_name", errs[0].Field)
	})

	t.Run("malformed email rejected", func(t *testing.T) {
		draft := validDraft()
		draft.CustomerEmail = "not-an-email"
		errs := draft.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "customer_email", errs[0].Field)
	})

	t.Run("unknown device type rejected", func(t *testing.T) {
		draft := validDraft()
		draft.DeviceType = DeviceType("Toaster")
		errs := draft.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "device_type", errs[0].Field)
	})

	t.Run("blank brand rejected", func(t *testing.T) {
		draft := validDraft()
		draft.Brand = "   "
		errs := draft.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "brand", errs[0].Field)
	})

	t.Run("short issue description rejected", func(t *testing.T) {
		draft := validDraft()
		draft.IssueDescription = "too short"
		errs := draft.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "issue_description", errs[0].Field)
	})

	t.Run("issue description of exactly twenty characters accepted", func(t *testing.T) {
		draft := validDraft()
		draft.IssueDescription = strings.Repeat("x", 20)
		assert.Empty(t, draft.Validate())
	})

	t.Run("all violations reported together", func(t *testing.T) {
		errs := RequestDraft{}.Validate()
		fields := make([]string, 0, len(errs))
		for _, fe := range errs {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{
			"customer_name", "customer_email", "device_type",
			"brand", "os_version", "issue_description",
		}, fields)
	})
}
