package booking

import "github.com/garagedesk/garagedesk/internal/model"

// transitions is the allowed lifecycle edge set. A reschedule is modeled as
// CONFIRMED -> CONFIRMED: the window is re-validated and the status kept.
// Terminal states have no entry and therefore no outgoing edges.
var transitions = map[model.Status][]model.Status{
	model.StatusRequested: {
		model.StatusConfirmed,
		model.StatusInProgress,
		model.StatusCanceled,
	},
	model.StatusConfirmed: {
		model.StatusConfirmed,
		model.StatusInProgress,
		model.StatusCanceled,
		model.StatusNoShow,
	},
	model.StatusInProgress: {
		model.StatusCompleted,
		model.StatusCanceled,
	},
}

func canTransition(from, to model.Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// guardTransition returns the typed error for a disallowed edge, or nil.
func guardTransition(from, to model.Status) error {
	if canTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}
