package tier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableRejectsBadWeights(t *testing.T) {
	_, err := NewTable(nil, nil)
	assert.Error(t, err)

	_, err = NewTable(map[Tier]float64{Common: 0}, nil)
	assert.Error(t, err)

	_, err = NewTable(map[Tier]float64{Common: -5, Rare: 10}, nil)
	assert.Error(t, err)
}

func TestDrawDistribution(t *testing.T) {
	table := MustDefault()

	const n = 100_000
	counts := map[Tier]int{}
	for i := 0; i < n; i++ {
		counts[table.Draw()]++
	}

	// Expected frequencies with ~5 sigma tolerance for a binomial draw.
	cases := []struct {
		tier Tier
		p    float64
	}{
		{Common, 0.89},
		{Rare, 0.10},
		{SuperRare, 0.01},
	}
	for _, c := range cases {
		observed := float64(counts[c.tier]) / n
		sigma := math.Sqrt(c.p * (1 - c.p) / n)
		assert.InDeltaf(t, c.p, observed, 5*sigma,
			"tier %s observed %.4f, expected %.4f", c.tier, observed, c.p)
	}
}

func TestAlternateWeightTable(t *testing.T) {
	// The other weight table seen in the wild; partitions are config, not
	// constants, so both must work.
	table, err := NewTable(map[Tier]float64{
		Common:    94.75,
		Rare:      5,
		SuperRare: 0.25,
	}, nil)
	require.NoError(t, err)

	const n = 50_000
	super := 0
	for i := 0; i < n; i++ {
		if table.Draw() == SuperRare {
			super++
		}
	}
	observed := float64(super) / n
	sigma := math.Sqrt(0.0025 * (1 - 0.0025) / n)
	assert.InDelta(t, 0.0025, observed, 5*sigma)
}

func TestPayloads(t *testing.T) {
	table := MustDefault()
	assert.NotEmpty(t, table.Payload(Common))
	assert.NotEmpty(t, table.Payload(SuperRare))
	assert.NotEqual(t, table.Payload(Common), table.Payload(SuperRare))

	custom, err := NewTable(DefaultWeights, map[Tier]string{Common: "gm"})
	require.NoError(t, err)
	assert.Equal(t, "gm", custom.Payload(Common))
}

func TestDrawCoversAllTiers(t *testing.T) {
	table := MustDefault()
	seen := map[Tier]bool{}
	for i := 0; i < 20_000 && len(seen) < 3; i++ {
		seen[table.Draw()] = true
	}
	assert.True(t, seen[Common])
	assert.True(t, seen[Rare])
	assert.True(t, seen[SuperRare], "super-rare should appear within 20k draws with overwhelming probability")
}
