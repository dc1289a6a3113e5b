package types

import "fmt"

// ErrorKind is a machine-readable failure code. Verification kinds are
// "please pay correctly and retry" conditions and become 402 challenges;
// settlement and relay kinds are operator or relay faults and become 5xx
// envelopes.
type ErrorKind string

const (
	// Verification side.
	ErrMissingProof       ErrorKind = "MISSING_PROOF"
	ErrMalformedProof     ErrorKind = "MALFORMED_PROOF"
	ErrProofReused        ErrorKind = "PROOF_REUSED"
	ErrTxNotFound         ErrorKind = "TX_NOT_FOUND"
	ErrNotConfirmed       ErrorKind = "NOT_CONFIRMED"
	ErrProofExpired       ErrorKind = "PROOF_EXPIRED"
	ErrRecipientMismatch  ErrorKind = "RECIPIENT_MISMATCH"
	ErrAmountInsufficient ErrorKind = "AMOUNT_INSUFFICIENT"
	ErrTxFailed           ErrorKind = "TX_FAILED"

	// Settlement side.
	ErrInvalidRecipient      ErrorKind = "INVALID_RECIPIENT"
	ErrInsufficientBalance   ErrorKind = "INSUFFICIENT_BALANCE"
	ErrUnauthorizedSigner    ErrorKind = "UNAUTHORIZED_SIGNER"
	ErrGasEstimationReverted ErrorKind = "GAS_ESTIMATION_REVERTED"
	ErrConfirmationFailed    ErrorKind = "CONFIRMATION_FAILED"
	ErrTxReverted            ErrorKind = "TX_REVERTED"

	// Relay side.
	ErrUnparsableChallenge      ErrorKind = "UNPARSABLE_CHALLENGE"
	ErrMissingBeneficiary       ErrorKind = "MISSING_BENEFICIARY"
	ErrUnreachable              ErrorKind = "UNREACHABLE"
	ErrDownstreamPaymentFailure ErrorKind = "DOWNSTREAM_PAYMENT_FAILURE"
)

// IsVerification reports whether the kind belongs to the verification
// taxonomy, i.e. should be answered with a challenge rather than a 5xx.
func (k ErrorKind) IsVerification() bool {
	switch k {
	case ErrMissingProof, ErrMalformedProof, ErrProofReused, ErrTxNotFound,
		ErrNotConfirmed, ErrProofExpired, ErrRecipientMismatch,
		ErrAmountInsufficient, ErrTxFailed:
		return true
	}
	return false
}

func (k ErrorKind) String() string { return string(k) }

// GateError is a structured failure carrying a kind plus operator-facing
// context. It is the only error type crossing package boundaries on expected
// failure paths.
type GateError struct {
	Kind    ErrorKind
	Message string
	Data    map[string]any
}

func (e *GateError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewGateError builds a GateError without extra context.
func NewGateError(kind ErrorKind, format string, args ...any) *GateError {
	return &GateError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
