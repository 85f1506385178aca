package domain

import dErrors "govdociq/pkg/domain-errors"

// DocumentState is the closed lifecycle enum for a document. Construct via
// ParseDocumentState at trust boundaries; direct casting bypasses validation.
type DocumentState string

const (
	StateReceived         DocumentState = "RECEIVED"
	StatePreprocessing    DocumentState = "PREPROCESSING"
	StateOCRComplete      DocumentState = "OCR_COMPLETE"
	StateBranched         DocumentState = "BRANCHED"
	StateMerged           DocumentState = "MERGED"
	StateWaitingForReview DocumentState = "WAITING_FOR_REVIEW"
	StateReviewInProgress DocumentState = "REVIEW_IN_PROGRESS"
	StateApproved         DocumentState = "APPROVED"
	StateRejected         DocumentState = "REJECTED"
	StateDisputed         DocumentState = "DISPUTED"
	StateExpired          DocumentState = "EXPIRED"
	StateFailed           DocumentState = "FAILED"
	StateArchived         DocumentState = "ARCHIVED"
)

// allowedTransitions is the single source of truth for legal lifecycle moves.
// Any pair not listed is illegal. ARCHIVED has no outgoing transitions.
var allowedTransitions = map[DocumentState][]DocumentState{
	StateReceived:         {StatePreprocessing},
	StatePreprocessing:    {StateOCRComplete},
	StateOCRComplete:      {StateBranched},
	StateBranched:         {StateMerged},
	StateMerged:           {StateWaitingForReview, StateApproved, StateRejected},
	StateWaitingForReview: {StateReviewInProgress, StateExpired},
	StateReviewInProgress: {StateApproved, StateRejected},
	StateRejected:         {StateDisputed, StateArchived},
	StateDisputed:         {StateReviewInProgress},
	StateApproved:         {StateArchived},
	StateExpired:          {StateArchived},
	StateFailed:           {StateArchived},
	StateArchived:         {},
}

// ParseDocumentState constructs a DocumentState from external input.
func ParseDocumentState(s string) (DocumentState, error) {
	st := DocumentState(s)
	if _, ok := allowedTransitions[st]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document state %q", s)
	}
	return st, nil
}

func (s DocumentState) String() string { return string(s) }

// Terminal reports whether the state has no outgoing transitions.
func (s DocumentState) Terminal() bool {
	return len(allowedTransitions[s]) == 0 && s == StateArchived
}

// States returns all known states in a stable order, for tests and admin
// surfaces that enumerate the lifecycle.
func States() []DocumentState {
	return []DocumentState{
		StateReceived, StatePreprocessing, StateOCRComplete, StateBranched,
		StateMerged, StateWaitingForReview, StateReviewInProgress,
		StateApproved, StateRejected, StateDisputed, StateExpired,
		StateFailed, StateArchived,
	}
}
