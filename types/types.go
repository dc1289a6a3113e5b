// Package types defines the shared data model for payment-gated agent
// invocation: pricing policies, settlement proofs, challenge documents,
// response envelopes, and the agent capability card.
package types

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// ProtocolVersion is the version of the payment challenge protocol.
const ProtocolVersion = 1

// ProofHeader is the HTTP header a caller uses to present a settlement proof.
const ProofHeader = "X-PAYMENT"

// BeneficiaryField is the request-body field a relaying agent uses to pass the
// end user's address when the on-chain payer of record is the relay's own key.
const BeneficiaryField = "beneficiary"

// PricingPolicy describes how a single agent instance charges for its work.
// It is loaded once at startup and never mutated afterwards.
type PricingPolicy struct {
	// UnitPrice is the advertised price per call, in minor units (wei).
	UnitPrice *big.Int

	// MinAmount is the smallest on-chain payment the verifier accepts.
	// Usually equal to UnitPrice.
	MinAmount *big.Int

	Currency string
	Network  string

	// PayTo is the address payments must be sent to.
	PayTo string

	RPCEndpoint string
}

// Validate checks the policy is internally consistent. It runs once at
// startup; a policy that fails here must never reach the verifier.
func (p *PricingPolicy) Validate() error {
	if p.UnitPrice == nil || p.UnitPrice.Sign() < 0 {
		return fmt.Errorf("pricing policy: unit price must be a non-negative integer")
	}
	if p.MinAmount == nil || p.MinAmount.Sign() < 0 {
		return fmt.Errorf("pricing policy: min amount must be a non-negative integer")
	}
	if p.PayTo == "" {
		return fmt.Errorf("pricing policy: payTo address is required")
	}
	if p.Network == "" {
		return fmt.Errorf("pricing policy: network is required")
	}
	if p.Currency == "" {
		return fmt.Errorf("pricing policy: currency is required")
	}
	return nil
}

// SettlementReference is the decoded form of a settlement proof. The hash is
// the sole evidence of payment; amount and recipient are always re-derived
// from the chain.
type SettlementReference struct {
	TxHash string `json:"txHash"`
}

// EncodeProof turns a transaction hash into the wire form carried in the
// X-PAYMENT header.
func EncodeProof(txHash string) string {
	return base64.StdEncoding.EncodeToString([]byte(txHash))
}

// DecodeProof decodes a caller-supplied proof into a SettlementReference.
// It validates shape only; whether the transaction exists is the verifier's
// business.
func DecodeProof(proof string) (SettlementReference, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(proof))
	if err != nil {
		return SettlementReference{}, fmt.Errorf("proof is not valid base64: %w", err)
	}
	hash := strings.TrimSpace(string(raw))
	if !isTxHash(hash) {
		return SettlementReference{}, fmt.Errorf("decoded proof %q is not a transaction hash", hash)
	}
	return SettlementReference{TxHash: hash}, nil
}

func isTxHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// PaymentTerms is a single entry in a challenge document's accepts list.
type PaymentTerms struct {
	Scheme            string    `json:"scheme"`
	Network           string    `json:"network"`
	Currency          string    `json:"currency"`
	MaxAmountRequired string    `json:"maxAmountRequired"`
	Resource          string    `json:"resource"`
	Description       string    `json:"description"`
	MimeType          string    `json:"mimeType"`
	PayTo             string    `json:"address"`
	Asset             string    `json:"asset,omitempty"`
	Ext               *TermsExt `json:"ext,omitempty"`
}

// TermsExt carries optional annotations on payment terms. A prior
// verification failure is surfaced here, never in place of the mandatory
// payment fields, so a failed-but-retriable request still tells the caller
// how to pay.
type TermsExt struct {
	Referrer     string `json:"referrer,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

// ChallengeDocument is the body of a 402 response. Constructed fresh per
// response, never stored.
type ChallengeDocument struct {
	Version int            `json:"x402Version"`
	Accepts []PaymentTerms `json:"accepts"`
	Error   string         `json:"error,omitempty"`
}

// ResourceWithAddress appends the pay-to address to a resource URL as a query
// parameter for backward-compatible clients.
func ResourceWithAddress(resource, payTo string) string {
	u, err := url.Parse(resource)
	if err != nil {
		return resource
	}
	q := u.Query()
	q.Set("address", payTo)
	u.RawQuery = q.Encode()
	return u.String()
}

// Envelope is the uniform success/error response body of agent endpoints.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// VerificationResult is the outcome of checking a settlement proof.
type VerificationResult struct {
	Valid bool `json:"valid"`

	// Payer is the chain-observed sender of the settling transaction.
	// Set only when Valid is true.
	Payer string `json:"payer,omitempty"`

	// Kind names the failed check when Valid is false.
	Kind ErrorKind `json:"reason,omitempty"`

	// Detail is a human-readable explanation of the failure.
	Detail string `json:"detail,omitempty"`
}

// SettlementResult is the outcome of executing an on-chain payment or mint.
// TxHash is populated on every path where a transaction was broadcast, even
// failed ones, so callers can reconcile out-of-band.
type SettlementResult struct {
	Success bool      `json:"success"`
	TxHash  string    `json:"txHash,omitempty"`
	Kind    ErrorKind `json:"reason,omitempty"`
	Detail  string    `json:"detail,omitempty"`

	// Diagnostics carries operator-facing context (current signer address,
	// chain-observed revert reason). Never includes signing material.
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// AgentCapability describes one paid operation an agent offers.
type AgentCapability struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Price        string         `json:"price"`
	Currency     string         `json:"currency"`
	Network      string         `json:"network"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// AgentCard is the discovery document served at /.well-known/agent.json.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version"`
	URL          string            `json:"url,omitempty"`
	Capabilities []AgentCapability `json:"capabilities"`
}

// Capability returns the named capability, if the card lists it.
func (c *AgentCard) Capability(name string) (*AgentCapability, bool) {
	for i := range c.Capabilities {
		if c.Capabilities[i].Name == name {
			return &c.Capabilities[i], true
		}
	}
	return nil, false
}

// IsFree reports whether the capability's advertised price is zero. Relays
// use this to skip settlement entirely.
func (c *AgentCapability) IsFree() bool {
	price, ok := new(big.Int).SetString(c.Price, 10)
	return ok && price.Sign() == 0
}
