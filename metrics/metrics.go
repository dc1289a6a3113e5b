// Package metrics defines the recording interface instrumented components
// use, with Prometheus and no-op implementations.
package metrics

import "time"

// Event names recorded by the module.
const (
	EventChallengeIssued  = "challenge_issued"
	EventProofVerified    = "proof_verified"
	EventProofRejected    = "proof_rejected"
	EventSettlementOK     = "settlement_success"
	EventSettlementFailed = "settlement_failure"
	EventRelayCompleted   = "relay_completed"
	EventRelayFailed      = "relay_failed"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
