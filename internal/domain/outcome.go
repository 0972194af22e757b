package domain

// OutcomeStatus enumerates the terminal result categories of Start.
type OutcomeStatus string

const (
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeTimedOut  OutcomeStatus = "timed_out"
)

// Outcome is the only value the orchestrator returns to callers. Exactly one
// variant applies: Rejected and Failed carry Reason, Completed carries the
// artifact reference plus the result store id, TimedOut carries the provider
// job id so a caller can offer a manual re-check later.
type Outcome struct {
	Status             OutcomeStatus
	Reason             string
	Err                error
	ArtifactRef        string
	SavedID            string
	PersistenceWarning bool
	ProviderJobID      string
}

// Charged reports whether the requestor's credits were kept for this outcome.
// Everything except Completed means "you were not charged".
func (o Outcome) Charged() bool {
	return o.Status == OutcomeCompleted
}
