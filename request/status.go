package request

// AggregateStatus derives the request status from its assignment list.
//
// With no assignments the current status is left untouched; aggregation only
// applies once at least one vendor is attached. Otherwise the request is
// closed only on unanimity: every vendor completed, or every vendor
// cancelled. Any disagreement, or any vendor still active, keeps the request
// at assigned for dispatcher review.
func AggregateStatus(current Status, assignments []Assignment) Status {
	if len(assignments) == 0 {
		return current
	}

	allCompleted := true
	allCancelled := true
	for _, a := range assignments {
		if a.Status != AssignmentCompleted {
			allCompleted = false
		}
		if a.Status != AssignmentCancelled {
			allCancelled = false
		}
	}

	switch {
	case allCompleted:
		return StatusCompleted
	case allCancelled:
		return StatusCancelled
	default:
		return StatusAssigned
	}
}
