// Package tier draws the weighted-random reward tier attached to a
// successful paid mint. Draws are independent per call and never influenced
// by caller input.
package tier

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
)

// Tier is a reward rarity class.
type Tier string

const (
	Common    Tier = "common"
	Rare      Tier = "rare"
	SuperRare Tier = "super_rare"
)

func (t Tier) String() string { return string(t) }

// DefaultWeights is the reference partition of [0,100). Deployments vary
// these, so they are configuration, not constants baked into the draw.
var DefaultWeights = map[Tier]float64{
	Common:    89,
	Rare:      10,
	SuperRare: 1,
}

// DefaultPayloads are the static reward messages keyed by tier.
var DefaultPayloads = map[Tier]string{
	Common:    "Common reward unlocked. Thanks for the call!",
	Rare:      "Rare reward unlocked! One in ten calls lands here.",
	SuperRare: "Super-rare reward unlocked! Lucky day.",
}

type band struct {
	tier  Tier
	upper float64 // cumulative upper bound
}

// Table is an immutable weighted partition used for draws. Safe for
// concurrent use; each draw reads fresh entropy from crypto/rand.
type Table struct {
	bands    []band
	total    float64
	payloads map[Tier]string
}

// NewTable builds a draw table from per-tier weights. Weights must be
// positive and are interpreted relative to their sum, so {89,10,1} and
// {94.75,5,0.25} are both valid partitions.
func NewTable(weights map[Tier]float64, payloads map[Tier]string) (*Table, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("tier table requires at least one weight")
	}

	tiers := make([]Tier, 0, len(weights))
	for t, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("tier %s has non-positive weight %v", t, w)
		}
		tiers = append(tiers, t)
	}
	// Deterministic band order regardless of map iteration.
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	table := &Table{payloads: payloads}
	var cum float64
	for _, t := range tiers {
		cum += weights[t]
		table.bands = append(table.bands, band{tier: t, upper: cum})
	}
	table.total = cum

	if table.payloads == nil {
		table.payloads = DefaultPayloads
	}
	return table, nil
}

// MustDefault returns the reference table. Panics only on a programming
// error in the defaults.
func MustDefault() *Table {
	t, err := NewTable(DefaultWeights, DefaultPayloads)
	if err != nil {
		panic(err)
	}
	return t
}

// Draw selects a tier. Entropy comes from crypto/rand so sequential draws
// share no RNG state that could bias one another.
func (t *Table) Draw() Tier {
	roll := randomFloat() * t.total
	for _, b := range t.bands {
		if roll < b.upper {
			return b.tier
		}
	}
	// Unreachable unless float rounding lands exactly on the total.
	return t.bands[len(t.bands)-1].tier
}

// Payload returns the reward message for a tier.
func (t *Table) Payload(tier Tier) string {
	if msg, ok := t.payloads[tier]; ok {
		return msg
	}
	return DefaultPayloads[Common]
}

// randomFloat returns a uniform value in [0,1) backed by crypto/rand.
func randomFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible to degrade to.
		panic(fmt.Sprintf("tier: entropy source unavailable: %v", err))
	}
	// 53 bits of mantissa.
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53)
}
