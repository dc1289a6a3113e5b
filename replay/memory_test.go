package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "0x9b2f6a1c4e8d3b7a5f0e2d4c6b8a0f1e3d5c7b9a1f3e5d7c9b1a3f5e7d9c1b3a"

func TestMemoryStoreConsumeOnce(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	used, err := s.Consumed(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, s.Consume(ctx, testHash, time.Hour))

	used, err = s.Consumed(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestMemoryStoreCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Consume(ctx, testHash, time.Hour))

	upper := "0x9B2F6A1C4E8D3B7A5F0E2D4C6B8A0F1E3D5C7B9A1F3E5D7C9B1A3F5E7D9C1B3A"
	used, err := s.Consumed(ctx, upper)
	require.NoError(t, err)
	assert.True(t, used, "hash comparison must be case-insensitive")
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Consume(ctx, testHash, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	used, err := s.Consumed(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, used, "entry should expire after its TTL")
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Consume(ctx, testHash, time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			used, err := s.Consumed(ctx, testHash)
			assert.NoError(t, err)
			assert.True(t, used)
		}()
	}
	wg.Wait()
}
