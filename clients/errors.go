package clients

import (
	"errors"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
)

// Substrings that mark a revert as an authorization failure on the mint
// contract. Matched case-insensitively against the revert reason the node
// returns, so the caller can be told which signing key the contract expects.
var unauthorizedMarkers = []string{
	"unauthorized",
	"not authorized",
	"caller is not",
	"invalid signer",
	"onlyowner",
}

// RevertReason extracts the human-readable revert reason from an RPC error,
// if the node supplied one. Nodes phrase this differently; the common shapes
// are "execution reverted: <reason>" and "execution reverted".
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	const marker = "execution reverted"
	idx := strings.Index(strings.ToLower(msg), marker)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimSpace(msg[idx+len(marker):])
	reason = strings.TrimPrefix(reason, ":")
	return strings.TrimSpace(reason), true
}

// IsUnauthorizedSigner reports whether an RPC error looks like the contract
// rejecting the current signing key.
func IsUnauthorizedSigner(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unauthorizedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether an RPC error means the requested object does not
// exist, as opposed to a transport failure.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	// ethereum.NotFound is the canonical sentinel, but some gateways wrap it
	// in their own "not found" strings.
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
