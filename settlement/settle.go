// Package settlement executes on-chain payment and mint calls from a
// service-held key: balance and recipient checks, tier-selected entry point,
// gas estimation with a fixed safety pad, synchronous confirmation wait, and
// best-effort event decoding.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/payward-labs/agentgate/clients"
	"github.com/payward-labs/agentgate/logger"
	"github.com/payward-labs/agentgate/metrics"
	"github.com/payward-labs/agentgate/tier"
	"github.com/payward-labs/agentgate/types"
)

const (
	// gasPadPercent is the fixed safety multiplier applied to gas estimates.
	gasPadPercent = 30

	defaultConfirmTimeout = 90 * time.Second
	defaultPollInterval   = 3 * time.Second
)

// defaultGasReserve is kept aside for fees when checking the signer balance:
// 0.0005 ether, generous for a single mint call on the supported networks.
var defaultGasReserve = big.NewInt(500_000_000_000_000)

// ChainBackend is the chain surface the executor needs. Satisfied by
// *clients.EVMClient.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Request describes one settlement. Amount is in minor units (wei).
// Contract may be empty, in which case the payment is a plain value transfer
// to Recipient; otherwise the tier-selected mint entry point on Contract is
// called with Recipient as the reward beneficiary.
type Request struct {
	Amount      *big.Int
	Recipient   string
	Contract    string
	Description string
	Referrer    string
	Tier        tier.Tier
}

// Executor holds the resolved signing identity and executes settlements.
// Key selection policy (role key versus shared fallback) is a configuration
// concern outside this component; it receives an already resolved key or
// oracle.
type Executor struct {
	chain ChainBackend

	key  *ecdsa.PrivateKey
	from common.Address

	oracle      types.SigningOracle
	broadcaster types.Broadcaster

	gasReserve     *big.Int
	confirmTimeout time.Duration
	pollInterval   time.Duration

	log     logger.Logger
	metrics metrics.Recorder
}

// Option configures an Executor.
type Option func(*Executor)

func WithGasReserve(reserve *big.Int) Option {
	return func(e *Executor) { e.gasReserve = reserve }
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Executor) { e.confirmTimeout = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.pollInterval = d }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = r }
}

// WithSigningOracle switches the executor to the split-custody variant: the
// oracle signs, the broadcaster submits, and the service never holds the key.
func WithSigningOracle(from string, oracle types.SigningOracle, broadcaster types.Broadcaster) Option {
	return func(e *Executor) {
		e.from = common.HexToAddress(from)
		e.oracle = oracle
		e.broadcaster = broadcaster
	}
}

// NewExecutor builds an executor from a hex-encoded signing key. Pass an
// empty key together with WithSigningOracle for split custody.
func NewExecutor(chain ChainBackend, signerKeyHex string, opts ...Option) (*Executor, error) {
	e := &Executor{
		chain:          chain,
		gasReserve:     defaultGasReserve,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		log:            logger.NoopLogger{},
		metrics:        metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if signerKeyHex != "" {
		key, err := crypto.HexToECDSA(trim0x(signerKeyHex))
		if err != nil {
			return nil, fmt.Errorf("invalid signer key: %w", err)
		}
		e.key = key
		e.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	if e.key == nil && e.oracle == nil {
		return nil, fmt.Errorf("executor needs either a signer key or a signing oracle")
	}
	if e.oracle != nil && e.broadcaster == nil {
		return nil, fmt.Errorf("a signing oracle requires a broadcaster")
	}
	return e, nil
}

// Signer returns the address settlements are sent from.
func (e *Executor) Signer() common.Address {
	return e.from
}

// Settle executes a payment or mint. Every failure mode is a structured
// result, never a panic; balance and gas-estimation failures indicate
// configuration problems and must not be retried automatically by callers.
func (e *Executor) Settle(ctx context.Context, req *Request) *types.SettlementResult {
	start := time.Now()
	result := e.settle(ctx, req)
	e.metrics.ObserveLatency("settle", time.Since(start), nil)
	if result.Success {
		e.metrics.IncCounter(metrics.EventSettlementOK, nil)
	} else {
		e.metrics.IncCounter(metrics.EventSettlementFailed, map[string]string{"kind": result.Kind.String()})
	}
	return result
}

func (e *Executor) settle(ctx context.Context, req *Request) *types.SettlementResult {
	if !common.IsHexAddress(req.Recipient) {
		return fail(types.ErrInvalidRecipient,
			fmt.Sprintf("recipient %q is not a valid address", req.Recipient), nil)
	}
	if req.Amount == nil || req.Amount.Sign() < 0 {
		return fail(types.ErrInvalidRecipient, "settlement amount must be a non-negative integer", nil)
	}

	diag := map[string]string{"signer": e.from.Hex()}

	balance, err := e.chain.BalanceAt(ctx, e.from)
	if err != nil {
		return fail(types.ErrInsufficientBalance,
			fmt.Sprintf("balance lookup failed: %v", err), diag)
	}
	needed := new(big.Int).Add(req.Amount, e.gasReserve)
	if balance.Cmp(needed) < 0 {
		diag["balance"] = balance.String()
		diag["required"] = needed.String()
		return fail(types.ErrInsufficientBalance,
			"signer balance does not cover amount plus gas reserve", diag)
	}

	to, data, err := e.callTarget(req)
	if err != nil {
		return fail(types.ErrGasEstimationReverted, err.Error(), diag)
	}

	msg := ethereum.CallMsg{From: e.from, To: &to, Value: req.Amount, Data: data}
	gasEstimate, err := e.chain.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation failure is a deterministic contract-level rejection,
		// not a transient fault.
		if reason, ok := clients.RevertReason(err); ok {
			diag["revertReason"] = reason
		}
		if clients.IsUnauthorizedSigner(err) {
			diag["expectedSignerHint"] = "contract rejected the current signing key"
			return fail(types.ErrUnauthorizedSigner, err.Error(), diag)
		}
		return fail(types.ErrGasEstimationReverted, err.Error(), diag)
	}
	gasLimit := gasEstimate + gasEstimate*gasPadPercent/100

	txHash, err := e.signAndSend(ctx, to, req.Amount, data, gasLimit)
	if err != nil {
		return fail(types.ErrGasEstimationReverted,
			fmt.Sprintf("failed to submit transaction: %v", err), diag)
	}

	e.log.Info("settlement submitted", map[string]any{
		"txHash": txHash, "to": to.Hex(), "amount": req.Amount.String(), "tier": req.Tier.String(),
	})

	receipt := e.waitReceipt(ctx, common.HexToHash(txHash))
	if receipt == nil {
		return &types.SettlementResult{
			Success:     false,
			TxHash:      txHash,
			Kind:        types.ErrConfirmationFailed,
			Detail:      "no receipt before the confirmation deadline; reconcile out-of-band",
			Diagnostics: diag,
		}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return &types.SettlementResult{
			Success:     false,
			TxHash:      txHash,
			Kind:        types.ErrTxReverted,
			Detail:      "settlement transaction reverted on chain",
			Diagnostics: diag,
		}
	}

	result := &types.SettlementResult{Success: true, TxHash: txHash}
	e.decodeEvents(receipt, result)
	return result
}

// callTarget resolves the transaction destination and calldata: a contract
// mint when a contract address is set, a plain transfer otherwise.
func (e *Executor) callTarget(req *Request) (common.Address, []byte, error) {
	if req.Contract == "" {
		return common.HexToAddress(req.Recipient), nil, nil
	}
	if !common.IsHexAddress(req.Contract) {
		return common.Address{}, nil, fmt.Errorf("contract %q is not a valid address", req.Contract)
	}
	data, err := contractABI.Pack(methodForTier(req.Tier),
		common.HexToAddress(req.Recipient), req.Description, req.Referrer)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to encode mint call: %w", err)
	}
	return common.HexToAddress(req.Contract), data, nil
}

func (e *Executor) signAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error) {
	nonce, err := e.chain.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", fmt.Errorf("nonce lookup failed: %w", err)
	}
	gasPrice, err := e.chain.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price lookup failed: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	if e.oracle != nil {
		unsigned, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("failed to encode unsigned transaction: %w", err)
		}
		signed, err := e.oracle.Sign(ctx, unsigned)
		if err != nil {
			return "", fmt.Errorf("signing oracle failed: %w", err)
		}
		return e.broadcaster.Broadcast(ctx, signed)
	}

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("chain ID lookup failed: %w", err)
	}
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), e.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := e.chain.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// waitReceipt polls for the receipt until the confirmation deadline. Returns
// nil when the deadline passes first; the transaction may still land later.
func (e *Executor) waitReceipt(ctx context.Context, hash common.Hash) *ethtypes.Receipt {
	deadline := time.Now().Add(e.confirmTimeout)
	for {
		receipt, err := e.chain.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt
		}
		if err != nil && !clients.IsNotFound(err) {
			e.log.Warn("receipt poll failed", map[string]any{"txHash": hash.Hex(), "error": err.Error()})
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.pollInterval):
		}
	}
}

// decodeEvents extracts known contract events from the receipt for
// observability. Logs from other contracts may share the receipt, so
// per-log parse failures are swallowed and never fail the settlement.
func (e *Executor) decodeEvents(receipt *ethtypes.Receipt, result *types.SettlementResult) {
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 {
			continue
		}
		event, err := contractABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		switch event.Name {
		case "RewardMinted":
			var ev struct {
				Tier uint8
				Note string
			}
			if err := contractABI.UnpackIntoInterface(&ev, "RewardMinted", lg.Data); err != nil {
				continue
			}
			if result.Diagnostics == nil {
				result.Diagnostics = map[string]string{}
			}
			if len(lg.Topics) > 1 {
				result.Diagnostics["mintedTo"] = common.HexToAddress(lg.Topics[1].Hex()).Hex()
			}
			result.Diagnostics["rewardNote"] = ev.Note
			e.log.Info("reward minted", map[string]any{
				"txHash": result.TxHash, "tier": ev.Tier, "note": ev.Note,
			})
		case "PaymentReceived":
			var ev struct {
				Amount *big.Int
			}
			if err := contractABI.UnpackIntoInterface(&ev, "PaymentReceived", lg.Data); err != nil {
				continue
			}
			e.log.Debug("payment received event", map[string]any{
				"txHash": result.TxHash, "amount": ev.Amount.String(),
			})
		}
	}
}

func fail(kind types.ErrorKind, detail string, diag map[string]string) *types.SettlementResult {
	return &types.SettlementResult{Success: false, Kind: kind, Detail: detail, Diagnostics: diag}
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
