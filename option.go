package agentgate

import (
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/replay"
	"github.com/payward-labs/agentgate/tier"
)

type Option func(*Gate)

func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gate) {
		g.metrics = r
	}
}

// WithReplayStore swaps the default in-memory replay guard, e.g. for the
// Redis-backed store shared across replicas.
func WithReplayStore(s replay.Store) Option {
	return func(g *Gate) {
		g.guard = s
	}
}

// WithAsset sets the mint contract address advertised in challenges. Leave
// unset for agents paid by plain value transfer.
func WithAsset(contract string) Option {
	return func(g *Gate) {
		g.asset = contract
	}
}

// WithSignerKey enables settlement and relaying with a hex-encoded private
// key. Without it the gate only verifies and challenges.
func WithSignerKey(keyHex string) Option {
	return func(g *Gate) {
		g.signerKey = keyHex
	}
}

// WithTierTable swaps the default reward partition.
func WithTierTable(t *tier.Table) Option {
	return func(g *Gate) {
		g.tiers = t
	}
}
