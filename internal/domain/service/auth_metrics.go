package service

// Outcomes reported to AuthMetrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	ObserveOperation(operation, outcome string)
	ObserveReuseDetected()
}
