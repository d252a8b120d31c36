package models

// Status is the lifecycle state of a credit application.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// legalTransitions is the complete transition table. Anything absent is
// illegal, including every move out of a terminal state.
var legalTransitions = map[Status][]Status{
	StatusPending:  {StatusInReview, StatusApproved, StatusRejected, StatusCancelled},
	StatusInReview: {StatusApproved, StatusRejected},
}

// CanTransitionTo reports whether s → target is a legal lifecycle move.
// Cancellation is only reachable from pending.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
