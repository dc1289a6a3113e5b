// Package relay orchestrates chained agent-to-agent payment: call the
// downstream agent unauthenticated, parse its challenge, settle on behalf of
// the original caller, and retry with the proof attached.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/settlement"
	"github.com/payward-labs/agentgate/tier"
	"github.com/payward-labs/agentgate/types"
)

// State names a position in the relay's state machine.
type State string

const (
	StateInit              State = "init"
	StateFirstCall         State = "first_call"
	StateChallengeReceived State = "challenge_received"
	StateSettling          State = "settling"
	StateSecondCall        State = "second_call"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// ResponseFormat tags which downstream payload shape was decoded. Old
// deployments answer with the bare capability payload; current ones wrap it
// in the {code,msg,data} envelope.
type ResponseFormat string

const (
	LegacyFormat  ResponseFormat = "legacy"
	CurrentFormat ResponseFormat = "current"
)

// Settler is the settlement surface the relay drives. Satisfied by
// *settlement.Executor.
type Settler interface {
	Settle(ctx context.Context, req *settlement.Request) *types.SettlementResult
}

// Invocation is one relayed capability call.
type Invocation struct {
	// Endpoint is the downstream agent's capability URL.
	Endpoint string

	// Payload is the capability-specific request body.
	Payload map[string]any

	// Beneficiary is the end user's address, supplied by the relaying
	// agent's own caller. The downstream agent cannot recover it from the
	// transaction's sender, which is the relay's signing key.
	Beneficiary string

	// Referrer is an optional referral code forwarded with settlement.
	Referrer string
}

// Result is a completed relay call.
type Result struct {
	State  State
	Format ResponseFormat

	// Data is the downstream capability payload.
	Data json.RawMessage

	// PaymentTx is the settlement transaction hash, when one was made.
	PaymentTx string
}

// Client relays payment-gated calls to downstream agents.
type Client struct {
	httpClient *http.Client
	settler    Settler
	tiers      *tier.Table
	log        logger.Logger
	metrics    metrics.Recorder
}

// Option configures a relay client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Client) { r.httpClient = c }
}

func WithTierTable(t *tier.Table) Option {
	return func(r *Client) { r.tiers = t }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Client) { r.log = l }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Client) { r.metrics = m }
}

// NewClient creates a relay client around a settlement executor.
func NewClient(settler Settler, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		settler:    settler,
		tiers:      tier.MustDefault(),
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Card fetches a downstream agent's capability discovery document.
func (c *Client) Card(ctx context.Context, baseURL string) (*types.AgentCard, error) {
	u, err := url.JoinPath(baseURL, "/.well-known/agent.json")
	if err != nil {
		return nil, fmt.Errorf("invalid agent base URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.NewGateError(types.ErrUnreachable, "agent card fetch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card fetch returned status %d", resp.StatusCode)
	}
	var card types.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}
	return &card, nil
}

// Invoke runs the relay state machine. Expected failures come back as
// *types.GateError; the downstream challenge is never forwarded to the
// relay's own caller.
func (c *Client) Invoke(ctx context.Context, inv *Invocation) (*Result, error) {
	start := time.Now()
	result, err := c.invoke(ctx, inv)
	c.metrics.ObserveLatency("relay", time.Since(start), nil)
	if err != nil {
		kind := "unknown"
		var gateErr *types.GateError
		if errors.As(err, &gateErr) {
			kind = gateErr.Kind.String()
		}
		c.metrics.IncCounter(metrics.EventRelayFailed, map[string]string{"kind": kind})
		return nil, err
	}
	c.metrics.IncCounter(metrics.EventRelayCompleted, nil)
	return result, nil
}

func (c *Client) invoke(ctx context.Context, inv *Invocation) (*Result, error) {
	// FirstCall: unauthenticated. A transport failure propagates as
	// Unreachable; blind retries would only obscure root cause, since a
	// challenge issuance has no side effects anyway.
	status, body, err := c.post(ctx, inv.Endpoint, inv.Payload, "")
	if err != nil {
		return nil, types.NewGateError(types.ErrUnreachable, "downstream agent unreachable: %v", err)
	}

	if status != http.StatusPaymentRequired {
		// Capability was free or already authorized.
		return c.finish(StateFirstCall, status, body)
	}

	terms, err := parseChallenge(body)
	if err != nil {
		return nil, err
	}

	if inv.Beneficiary == "" {
		// A caller-side contract violation, not a downstream fault.
		return nil, types.NewGateError(types.ErrMissingBeneficiary,
			"relayed settlement requires the end user's address")
	}

	referrer := inv.Referrer
	if terms.Ext != nil && terms.Ext.Referrer != "" {
		referrer = terms.Ext.Referrer
	}

	amount, _ := new(big.Int).SetString(terms.MaxAmountRequired, 10)
	drawn := c.tiers.Draw()
	c.log.Info("settling downstream challenge", map[string]any{
		"endpoint": inv.Endpoint,
		"payTo":    terms.PayTo,
		"amount":   amount.String(),
		"tier":     drawn.String(),
	})

	settled := c.settler.Settle(ctx, &settlement.Request{
		Amount:      amount,
		Recipient:   terms.PayTo,
		Contract:    terms.Asset,
		Description: terms.Description,
		Referrer:    referrer,
		Tier:        drawn,
	})
	if !settled.Success {
		// The downstream agent never saw a malformed request; this is the
		// relay's own internal failure and is reported as such.
		return nil, &types.GateError{
			Kind:    settled.Kind,
			Message: fmt.Sprintf("failed to settle downstream payment: %s", settled.Detail),
			Data:    map[string]any{"txHash": settled.TxHash, "diagnostics": settled.Diagnostics},
		}
	}

	// SecondCall: retry with the proof and the explicit beneficiary, since
	// the on-chain payer of record is the relay's signing key.
	payload := make(map[string]any, len(inv.Payload)+1)
	for k, v := range inv.Payload {
		payload[k] = v
	}
	payload[types.BeneficiaryField] = inv.Beneficiary

	status, body, err = c.post(ctx, inv.Endpoint, payload, types.EncodeProof(settled.TxHash))
	if err != nil {
		return nil, types.NewGateError(types.ErrUnreachable,
			"downstream agent unreachable after settlement (tx %s): %v", settled.TxHash, err)
	}

	if status == http.StatusPaymentRequired {
		// The settlement was not accepted. Surfacing another challenge here
		// would prompt the end user to pay twice for work they already
		// funded through the relay, so the challenge body is dropped.
		return nil, &types.GateError{
			Kind:    types.ErrDownstreamPaymentFailure,
			Message: "downstream agent rejected a completed settlement",
			Data:    map[string]any{"txHash": settled.TxHash},
		}
	}

	result, err := c.finish(StateSecondCall, status, body)
	if err != nil {
		return nil, err
	}
	result.PaymentTx = settled.TxHash
	return result, nil
}

// finish interprets a downstream non-402 response.
func (c *Client) finish(from State, status int, body []byte) (*Result, error) {
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("downstream agent returned status %d after %s", status, from)
	}
	data, format, err := decodePayload(body)
	if err != nil {
		return nil, err
	}
	return &Result{State: StateSucceeded, Format: format, Data: data}, nil
}

// parseChallenge extracts the first accepted payment terms from a 402 body.
// Required fields are the recipient and a parseable amount; anything less is
// an unparsable challenge.
func parseChallenge(body []byte) (*types.PaymentTerms, error) {
	var doc types.ChallengeDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, types.NewGateError(types.ErrUnparsableChallenge,
			"challenge body is not valid JSON: %v", err)
	}
	if len(doc.Accepts) == 0 {
		return nil, types.NewGateError(types.ErrUnparsableChallenge,
			"challenge lists no accepted payment terms")
	}
	terms := doc.Accepts[0]
	if terms.PayTo == "" {
		return nil, types.NewGateError(types.ErrUnparsableChallenge,
			"challenge is missing the pay-to address")
	}
	if _, ok := new(big.Int).SetString(terms.MaxAmountRequired, 10); !ok {
		return nil, types.NewGateError(types.ErrUnparsableChallenge,
			"challenge amount %q is not an integer", terms.MaxAmountRequired)
	}
	return &terms, nil
}

// decodePayload classifies the downstream response shape with a strict
// schema match: the {code,msg,data} envelope is CurrentFormat, a bare
// payload object is LegacyFormat. No speculative field probing beyond that.
func decodePayload(body []byte) (json.RawMessage, ResponseFormat, error) {
	var probe struct {
		Code *int             `json:"code"`
		Msg  *string          `json:"msg"`
		Data *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, "", fmt.Errorf("downstream response is not valid JSON: %w", err)
	}
	if probe.Code != nil && probe.Msg != nil {
		if *probe.Code < 200 || *probe.Code > 299 {
			return nil, CurrentFormat, fmt.Errorf("downstream agent reported failure: %s", *probe.Msg)
		}
		if probe.Data == nil {
			return json.RawMessage("null"), CurrentFormat, nil
		}
		return *probe.Data, CurrentFormat, nil
	}
	return json.RawMessage(body), LegacyFormat, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any, proof string) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if proof != "" {
		req.Header.Set(types.ProofHeader, proof)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

