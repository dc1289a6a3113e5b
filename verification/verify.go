// Package verification checks caller-supplied settlement proofs against a
// pricing policy using on-chain state. Nothing the client declares is
// trusted; amount, recipient, and status are always re-derived from the
// chain.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/payward-labs/agentgate/clients"
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/replay"
	"github.com/payward-labs/agentgate/types"
)

// DefaultFreshnessWindow is how far behind the chain head a settling
// transaction may be and still count as payment for the current request.
const DefaultFreshnessWindow = 10 * time.Minute

// ChainReader is the read-only chain surface the verifier needs. Satisfied
// by *clients.EVMClient.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*ethtypes.Header, error)
	HeadTimestamp(ctx context.Context) (uint64, error)
}

// Service verifies settlement proofs. Safe for concurrent use; the only
// shared mutable state is the replay guard, which tolerates the narrow race
// where two verifications of the same hash both observe "not consumed";
// the on-chain double-spend backstop makes that harmless.
type Service struct {
	chain     ChainReader
	guard     replay.Store
	freshness time.Duration
	replayTTL time.Duration
	timeout   time.Duration
	log       logger.Logger
	metrics   metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

func WithFreshnessWindow(d time.Duration) Option {
	return func(s *Service) { s.freshness = d }
}

func WithReplayTTL(d time.Duration) Option {
	return func(s *Service) { s.replayTTL = d }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// NewService creates a verifier bound to a chain client and a replay guard.
func NewService(chain ChainReader, guard replay.Store, opts ...Option) *Service {
	s := &Service{
		chain:     chain,
		guard:     guard,
		freshness: DefaultFreshnessWindow,
		replayTTL: replay.DefaultTTL,
		timeout:   30 * time.Second,
		log:       logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify validates a settlement proof against the policy. Failed checks are
// returned as results carrying an ErrorKind, not as errors; an error return
// means the chain or the guard could not be consulted at all.
func (s *Service) Verify(ctx context.Context, proof string, policy *types.PricingPolicy) (*types.VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.verify(ctx, proof, policy)
	s.metrics.ObserveLatency("verify", time.Since(start), nil)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		s.metrics.IncCounter(metrics.EventProofVerified, nil)
	} else {
		s.metrics.IncCounter(metrics.EventProofRejected, map[string]string{"kind": result.Kind.String()})
	}
	return result, nil
}

func (s *Service) verify(ctx context.Context, proof string, policy *types.PricingPolicy) (*types.VerificationResult, error) {
	if strings.TrimSpace(proof) == "" {
		return reject(types.ErrMissingProof, "no settlement proof supplied"), nil
	}

	ref, err := types.DecodeProof(proof)
	if err != nil {
		return reject(types.ErrMalformedProof, err.Error()), nil
	}

	used, err := s.guard.Consumed(ctx, ref.TxHash)
	if err != nil {
		return nil, fmt.Errorf("replay guard lookup failed: %w", err)
	}
	if used {
		return reject(types.ErrProofReused, "settlement proof already consumed"), nil
	}

	hash := common.HexToHash(ref.TxHash)
	tx, pending, err := s.chain.TransactionByHash(ctx, hash)
	if err != nil {
		if clients.IsNotFound(err) {
			return reject(types.ErrTxNotFound, "transaction not found on chain"), nil
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}
	if pending {
		return reject(types.ErrNotConfirmed, "transaction is not yet mined"), nil
	}

	receipt, err := s.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		if clients.IsNotFound(err) {
			return reject(types.ErrNotConfirmed, "transaction has no receipt yet"), nil
		}
		return nil, fmt.Errorf("receipt lookup failed: %w", err)
	}

	header, err := s.chain.HeaderByHash(ctx, receipt.BlockHash)
	if err != nil {
		if clients.IsNotFound(err) {
			return reject(types.ErrNotConfirmed, "containing block not found"), nil
		}
		return nil, fmt.Errorf("block lookup failed: %w", err)
	}

	// Freshness is judged in chain time. An expired proof is consumed anyway
	// so the replay window on that hash closes permanently.
	head, err := s.chain.HeadTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("head lookup failed: %w", err)
	}
	if head > header.Time && time.Duration(head-header.Time)*time.Second > s.freshness {
		if cerr := s.guard.Consume(ctx, ref.TxHash, s.replayTTL); cerr != nil {
			s.log.Warn("failed to consume expired proof", map[string]any{
				"txHash": ref.TxHash, "error": cerr.Error(),
			})
		}
		return reject(types.ErrProofExpired,
			fmt.Sprintf("transaction is %ds old, window is %s", head-header.Time, s.freshness)), nil
	}

	if tx.To() == nil || !strings.EqualFold(tx.To().Hex(), policy.PayTo) {
		return reject(types.ErrRecipientMismatch,
			fmt.Sprintf("payment recipient does not match %s", policy.PayTo)), nil
	}

	if tx.Value().Cmp(policy.MinAmount) < 0 {
		return reject(types.ErrAmountInsufficient,
			fmt.Sprintf("paid %s, require at least %s", tx.Value(), policy.MinAmount)), nil
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return reject(types.ErrTxFailed, "settling transaction reverted"), nil
	}

	chainID, err := s.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain ID lookup failed: %w", err)
	}
	payer, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover transaction sender: %w", err)
	}

	if err := s.guard.Consume(ctx, ref.TxHash, s.replayTTL); err != nil {
		return nil, fmt.Errorf("replay guard write failed: %w", err)
	}

	s.log.Info("settlement proof accepted", map[string]any{
		"txHash": ref.TxHash,
		"payer":  payer.Hex(),
		"amount": tx.Value().String(),
	})

	return &types.VerificationResult{Valid: true, Payer: payer.Hex()}, nil
}

func reject(kind types.ErrorKind, detail string) *types.VerificationResult {
	return &types.VerificationResult{Valid: false, Kind: kind, Detail: detail}
}
