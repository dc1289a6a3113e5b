package httpgate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/payward-labs/agentgate/challenge"
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/types"
)

const (
	// PayerKey is the gin context key under which the middleware stores the
	// verified payer address.
	PayerKey = "agentgate_payer"

	// RequestIDKey is the gin context key and response header for the
	// per-request correlation ID.
	RequestIDKey = "X-Request-ID"

	// referrerParam is the query parameter relays and storefronts use to tag
	// a referral; it is echoed into the challenge ext.
	referrerParam = "referrer"
)

// Verifier is the proof-checking surface the gate drives. Satisfied by
// *verification.Service.
type Verifier interface {
	Verify(ctx context.Context, proof string, policy *types.PricingPolicy) (*types.VerificationResult, error)
}

// Gate holds the wiring for the payment middleware.
type Gate struct {
	verifier    Verifier
	builder     *challenge.Builder
	policy      *types.PricingPolicy
	description string
	log         logger.Logger
	metrics     metrics.Recorder
}

// GateOption configures a Gate.
type GateOption func(*Gate)

func WithLogger(l logger.Logger) GateOption {
	return func(g *Gate) { g.log = l }
}

func WithMetrics(m metrics.Recorder) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate builds the payment gate for one capability. description appears in
// the challenge terms; asset is the mint contract address, empty for plain
// transfers.
func NewGate(verifier Verifier, policy *types.PricingPolicy, asset, description string, opts ...GateOption) *Gate {
	g := &Gate{
		verifier:    verifier,
		builder:     challenge.NewBuilder(policy, asset),
		policy:      policy,
		description: description,
		log:         logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the gin handler enforcing payment on the route. A
// request without a proof, or with one that fails verification, is answered
// with a fresh 402 challenge and never reaches the capability handler. On
// success the recovered payer lands in the context under PayerKey.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.policy.UnitPrice.Sign() == 0 {
			c.Next()
			return
		}

		resource := requestResource(c.Request)
		referrer := c.Query(referrerParam)

		proof := c.GetHeader(types.ProofHeader)
		if proof == "" {
			g.log.Info("challenging unauthenticated request", map[string]any{
				"path": c.Request.URL.Path,
			})
			g.metrics.IncCounter(metrics.EventChallengeIssued, map[string]string{"kind": "initial"})
			Challenge(c, g.builder.Build(resource, g.description, referrer, nil))
			return
		}

		result, err := g.verifier.Verify(c.Request.Context(), proof, g.policy)
		if err != nil {
			// Chain access failed; the proof was never judged, so no
			// challenge is issued and the payer can simply retry.
			g.log.Error("proof verification unavailable", map[string]any{"error": err.Error()})
			Error(c, http.StatusServiceUnavailable, "payment verification temporarily unavailable")
			return
		}
		if !result.Valid {
			g.log.Warn("rejecting payment proof", map[string]any{
				"kind":   result.Kind.String(),
				"detail": result.Detail,
			})
			g.metrics.IncCounter(metrics.EventProofRejected, map[string]string{"kind": result.Kind.String()})
			Challenge(c, g.builder.Build(resource, g.description, referrer, result))
			return
		}

		g.metrics.IncCounter(metrics.EventProofVerified, nil)
		c.Set(PayerKey, result.Payer)
		c.Next()
	}
}

// RequestID assigns each request a correlation ID, honoring one supplied by
// the caller, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDKey, id)
		c.Next()
	}
}

// Payer returns the verified payer address set by the gate, if any.
func Payer(c *gin.Context) (string, bool) {
	payer := c.GetString(PayerKey)
	return payer, payer != ""
}

func requestResource(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
