package domain

import dErrors "govdociq/pkg/domain-errors"

// Transition validates a lifecycle move and returns the target state. This is
// the single gate for every state mutation in the system; callers must not
// set Document.State directly.
//
// Any non-archived state may move to FAILED: pipeline exceptions can strike
// at every stage, and refusing the transition would strand the document in a
// state the audit trail cannot explain.
func Transition(current, target DocumentState) (DocumentState, error) {
	if target == StateFailed && current != StateArchived {
		return target, nil
	}
	for _, allowed := range allowedTransitions[current] {
		if allowed == target {
			return target, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvalidTransition,
		"invalid transition %s -> %s", current, target)
}

// CanTransition reports whether the move is legal without constructing an
// error, for callers probing options (e.g. admin surfaces).
func CanTransition(current, target DocumentState) bool {
	_, err := Transition(current, target)
	return err == nil
}
