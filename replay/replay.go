// Package replay implements the guard that enforces at-most-once consumption
// of a settlement proof. The guard only prevents HTTP-level replay of the
// same proof against this service; duplicate on-chain spend is structurally
// impossible, which is why a best-effort, non-linearizable store is
// acceptable here.
package replay

import (
	"context"
	"time"
)

// DefaultTTL is how long a consumed hash is remembered. Expiry is a storage
// cost optimization, not a security relaxation: a spent transaction cannot be
// spent again on-chain either.
const DefaultTTL = 24 * time.Hour

// Store records settlement proofs that have been consumed. Implementations
// must be safe under concurrent check-then-set from multiple in-flight
// requests.
type Store interface {
	// Consume marks a transaction hash as spent for ttl.
	Consume(ctx context.Context, txHash string, ttl time.Duration) error

	// Consumed reports whether the hash has already been spent.
	Consumed(ctx context.Context, txHash string) (bool, error)

	// Close releases any backing resources.
	Close() error
}
