package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdociq/internal/domain"
	dErrors "govdociq/pkg/domain-errors"
	"govdociq/pkg/testutil"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.DocumentState
		to      domain.DocumentState
		allowed bool
	}{
		{"received starts preprocessing", domain.StateReceived, domain.StatePreprocessing, true},
		{"received cannot skip to merged", domain.StateReceived, domain.StateMerged, false},
		{"preprocessing to ocr complete", domain.StatePreprocessing, domain.StateOCRComplete, true},
		{"ocr complete to branched", domain.StateOCRComplete, domain.StateBranched, true},
		{"branched to merged", domain.StateBranched, domain.StateMerged, true},
		{"merged auto-approves", domain.StateMerged, domain.StateApproved, true},
		{"merged auto-rejects", domain.StateMerged, domain.StateRejected, true},
		{"merged routes to review", domain.StateMerged, domain.StateWaitingForReview, true},
		{"waiting enters review", domain.StateWaitingForReview, domain.StateReviewInProgress, true},
		{"waiting expires", domain.StateWaitingForReview, domain.StateExpired, true},
		{"waiting cannot approve directly", domain.StateWaitingForReview, domain.StateApproved, false},
		{"review approves", domain.StateReviewInProgress, domain.StateApproved, true},
		{"review rejects", domain.StateReviewInProgress, domain.StateRejected, true},
		{"rejection disputed", domain.StateRejected, domain.StateDisputed, true},
		{"dispute reopens review", domain.StateDisputed, domain.StateReviewInProgress, true},
		{"approved cannot be disputed", domain.StateApproved, domain.StateDisputed, false},
		{"approved archives", domain.StateApproved, domain.StateArchived, true},
		{"expired archives", domain.StateExpired, domain.StateArchived, true},
		{"failed archives", domain.StateFailed, domain.StateArchived, true},
		{"archived is terminal", domain.StateArchived, domain.StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.Transition(tt.from, tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, got)
				assert.True(t, domain.CanTransition(tt.from, tt.to))
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
			assert.False(t, domain.CanTransition(tt.from, tt.to))
		})
	}
}

func TestFailureEscapeHatch(t *testing.T) {
	testutil.Given(t, "a document anywhere in the lifecycle", func(t *testing.T) {
		for _, state := range domain.States() {
			if state == domain.StateArchived {
				continue
			}
			got, err := domain.Transition(state, domain.StateFailed)
			require.NoError(t, err, "state %s", state)
			assert.Equal(t, domain.StateFailed, got)
		}
	})

	testutil.Then(t, "an archived document stays archived", func(t *testing.T) {
		_, err := domain.Transition(domain.StateArchived, domain.StateFailed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestParseDocumentState(t *testing.T) {
	st, err := domain.ParseDocumentState("WAITING_FOR_REVIEW")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaitingForReview, st)

	_, err = domain.ParseDocumentState("LIMBO")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestTerminal(t *testing.T) {
	assert.True(t, domain.StateArchived.Terminal())
	assert.False(t, domain.StateFailed.Terminal())
	assert.False(t, domain.StateApproved.Terminal())
}
