// Package clients wraps blockchain RPC access behind a single injected
// client object with a defined lifecycle: constructed once at process start,
// passed by reference into every component.
package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/payward-labs/agentgate/types"
)

// EVMClient provides the read and write chain operations the verifier and
// the settlement executor need. All methods are blocking round-trips; the
// client itself holds no per-request state and is safe for concurrent use.
type EVMClient struct {
	network types.Network
	rpcURL  string
	client  *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
}

// NewEVMClient connects to an EVM RPC endpoint.
func NewEVMClient(network types.Network, rpcURL string) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC %s: %w", rpcURL, err)
	}
	return &EVMClient{
		network: network,
		rpcURL:  rpcURL,
		client:  client,
	}, nil
}

// Network returns the network this client is bound to.
func (e *EVMClient) Network() types.Network {
	return e.network
}

// ChainID returns the chain ID, fetching it once and caching it. The cached
// value is checked against the configured network's known chain ID so a
// misconfigured RPC endpoint fails loudly.
func (e *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chainID != nil {
		return new(big.Int).Set(e.chainID), nil
	}
	id, err := e.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain ID: %w", err)
	}
	if want, ok := e.network.ChainID(); ok && id.Uint64() != want {
		return nil, fmt.Errorf("RPC endpoint reports chain ID %d, network %s expects %d",
			id.Uint64(), e.network, want)
	}
	e.chainID = id
	return new(big.Int).Set(e.chainID), nil
}

// TransactionByHash fetches a transaction and whether it is still pending.
func (e *EVMClient) TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	return e.client.TransactionByHash(ctx, hash)
}

// TransactionReceipt fetches the receipt of a mined transaction.
func (e *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return e.client.TransactionReceipt(ctx, hash)
}

// HeaderByHash fetches a block header by block hash.
func (e *EVMClient) HeaderByHash(ctx context.Context, hash common.Hash) (*ethtypes.Header, error) {
	return e.client.HeaderByHash(ctx, hash)
}

// HeadTimestamp returns the timestamp of the current chain head. Freshness
// checks compare against chain time, not wall clock, to avoid clock skew
// between verifier and chain.
func (e *EVMClient) HeadTimestamp(ctx context.Context) (uint64, error) {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	return header.Time, nil
}

// BalanceAt returns the balance of an account at the latest block.
func (e *EVMClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return e.client.BalanceAt(ctx, account, nil)
}

// PendingNonceAt returns the next nonce for an account, including pending
// transactions. Nonce sequencing beyond this is delegated to the RPC node.
func (e *EVMClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return e.client.PendingNonceAt(ctx, account)
}

// SuggestGasPrice returns the node's suggested gas price.
func (e *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return e.client.SuggestGasPrice(ctx)
}

// EstimateGas estimates gas for a call.
func (e *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return e.client.EstimateGas(ctx, msg)
}

// CallContract executes a read-only contract call at the latest block.
func (e *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return e.client.CallContract(ctx, msg, nil)
}

// SendTransaction broadcasts a signed transaction.
func (e *EVMClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return e.client.SendTransaction(ctx, tx)
}

// SendRawTransaction broadcasts pre-signed RLP transaction bytes, as produced
// by an external signing oracle, and returns the transaction hash.
func (e *EVMClient) SendRawTransaction(ctx context.Context, signedTx []byte) (string, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return "", fmt.Errorf("invalid raw transaction bytes: %w", err)
	}
	if err := e.client.SendTransaction(ctx, tx); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// Broadcast implements types.Broadcaster on top of SendRawTransaction so the
// client can serve as the broadcaster in split-custody deployments.
func (e *EVMClient) Broadcast(ctx context.Context, signedTx []byte) (string, error) {
	return e.SendRawTransaction(ctx, signedTx)
}

// Close releases the underlying RPC connection.
func (e *EVMClient) Close() {
	e.client.Close()
}
