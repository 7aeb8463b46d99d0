package match

// Outcome is the result of reconciling the two post-reveal decisions.
type Outcome struct {
	// Final is true once the match has a terminal status for this reveal
	// window; false means the caller waits for the partner.
	Final  bool
	Status Status
}

// Reconcile computes the outcome of a just-submitted decision against the
// partner's recorded one. A pass ends the match unilaterally, even if the
// partner already chose continue; a continue only finalizes once the partner
// has answered.
func Reconcile(submitted, partner Decision) Outcome {
	if submitted == DecisionPass {
		return Outcome{Final: true, Status: StatusEnded}
	}
	switch partner {
	case DecisionContinue:
		return Outcome{Final: true, Status: StatusContinued}
	case DecisionPass:
		return Outcome{Final: true, Status: StatusEnded}
	default:
		return Outcome{Final: false, Status: StatusRevealed}
	}
}
