package chore

import "github.com/dukerupert/chorechart/internal/model"

// transitions lists the statuses each status may move to. APPROVED and
// REJECTED are terminal; payout removes approved rows instead of moving them.
var transitions = map[model.CompletionStatus][]model.CompletionStatus{
	model.StatusInProgress: {model.StatusCompleted},
	model.StatusCompleted:  {model.StatusApproved, model.StatusRejected},
}

// CanTransition reports whether a completion may move from one status to another.
func CanTransition(from, to model.CompletionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from status.
func IsTerminal(status model.CompletionStatus) bool {
	return len(transitions[status]) == 0
}
