package domain

// OutcomeStatus classifies the result of a transition check.
type OutcomeStatus string

const (
	OutcomeSuccess      OutcomeStatus = "success"
	OutcomeNoTransition OutcomeStatus = "no_transition"
	OutcomeError        OutcomeStatus = "error"
)

// Outcome is returned by every transition check; it is never dropped.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	NodeID string        `json:"node_id,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Success reports a committed transition to nodeID.
func Success(nodeID string) Outcome {
	return Outcome{Status: OutcomeSuccess, NodeID: nodeID}
}

// NoTransition reports that nothing fired.
func NoTransition() Outcome {
	return Outcome{Status: OutcomeNoTransition}
}

// Failure reports a recoverable error during the check.
func Failure(err error) Outcome {
	return Outcome{Status: OutcomeError, Reason: err.Error()}
}

func (o Outcome) IsSuccess() bool { return o.Status == OutcomeSuccess }
