// Package agentgate turns plain HTTP capabilities into payment-gated ones:
// callers are challenged with payment terms, pay on chain, and retry with a
// settlement proof that is verified against the chain before the capability
// runs. Agents can also pay each other, relaying a caller's payment to a
// downstream agent while preserving the caller as the reward beneficiary.
package agentgate

import (
	"context"
	"fmt"

	"github.com/payward-labs/agentgate/challenge"
	"github.com/payward-labs/agentgate/clients"
	"github.com/payward-labs/agentgate/httpgate"
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/relay"
	"github.com/payward-labs/agentgate/replay"
	"github.com/payward-labs/agentgate/settlement"
	"github.com/payward-labs/agentgate/tier"
	"github.com/payward-labs/agentgate/types"
	"github.com/payward-labs/agentgate/verification"

	"github.com/gin-gonic/gin"
)

// Gate is the assembled payment stack of one agent: chain client, replay
// guard, verifier, challenge builder, and optionally a settlement executor
// plus relay client when the agent pays downstream agents itself.
type Gate struct {
	policy *types.PricingPolicy

	chain    *clients.EVMClient
	guard    replay.Store
	verifier *verification.Service
	builder  *challenge.Builder

	executor *settlement.Executor
	relayer  *relay.Client
	tiers    *tier.Table

	asset     string
	signerKey string

	log     logger.Logger
	metrics metrics.Recorder
}

// New dials the configured RPC endpoint and assembles the gate. The policy
// must already be validated.
func New(policy *types.PricingPolicy, opts ...Option) (*Gate, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		policy:  policy,
		guard:   replay.NewMemoryStore(),
		tiers:   tier.MustDefault(),
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}

	chain, err := clients.NewEVMClient(types.Network(policy.Network), policy.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", policy.Network, err)
	}
	g.chain = chain

	g.verifier = verification.NewService(chain, g.guard,
		verification.WithLogger(g.log),
		verification.WithMetrics(g.metrics),
	)
	g.builder = challenge.NewBuilder(policy, g.asset)

	if g.signerKey != "" {
		executor, err := settlement.NewExecutor(chain, g.signerKey,
			settlement.WithLogger(g.log),
			settlement.WithMetrics(g.metrics),
		)
		if err != nil {
			chain.Close()
			return nil, err
		}
		g.executor = executor
		g.relayer = relay.NewClient(executor,
			relay.WithTierTable(g.tiers),
			relay.WithLogger(g.log),
			relay.WithMetrics(g.metrics),
		)
	}

	return g, nil
}

// Verify checks a settlement proof against the chain and this gate's policy.
func (g *Gate) Verify(ctx context.Context, proof string) (*types.VerificationResult, error) {
	return g.verifier.Verify(ctx, proof, g.policy)
}

// Challenge builds a fresh payment challenge for a resource. verr may be nil.
func (g *Gate) Challenge(resource, description, referrer string, verr *types.VerificationResult) *types.ChallengeDocument {
	return g.builder.Build(resource, description, referrer, verr)
}

// Middleware returns a gin middleware enforcing payment for one capability.
func (g *Gate) Middleware(description string) gin.HandlerFunc {
	return httpgate.NewGate(g.verifier, g.policy, g.asset, description,
		httpgate.WithLogger(g.log),
		httpgate.WithMetrics(g.metrics),
	).Middleware()
}

// Settle pays a downstream recipient directly. Only available when the gate
// was built with a signing key.
func (g *Gate) Settle(ctx context.Context, req *settlement.Request) (*types.SettlementResult, error) {
	if g.executor == nil {
		return nil, fmt.Errorf("gate has no signing key; settlement is disabled")
	}
	return g.executor.Settle(ctx, req), nil
}

// Invoke relays a payment-gated call to a downstream agent, paying its
// challenge on the caller's behalf.
func (g *Gate) Invoke(ctx context.Context, inv *relay.Invocation) (*relay.Result, error) {
	if g.relayer == nil {
		return nil, fmt.Errorf("gate has no signing key; relaying is disabled")
	}
	return g.relayer.Invoke(ctx, inv)
}

// Tiers exposes the reward partition, for handlers that attach the drawn
// payload to responses.
func (g *Gate) Tiers() *tier.Table { return g.tiers }

// Close releases the chain connection and the replay guard.
func (g *Gate) Close() {
	if g.chain != nil {
		g.chain.Close()
	}
	if g.guard != nil {
		g.guard.Close()
	}
}
