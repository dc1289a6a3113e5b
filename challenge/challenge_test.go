package challenge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payward-labs/agentgate/types"
)

func policy() *types.PricingPolicy {
	return &types.PricingPolicy{
		UnitPrice: big.NewInt(50000000000000), // 0.00005 ETH
		MinAmount: big.NewInt(50000000000000),
		Currency:  "ETH",
		Network:   "base-sepolia",
		PayTo:     "0x384Aa214be0B279cbf211e9b2C992d8633F77848",
	}
}

func TestBuildChallengeBasics(t *testing.T) {
	b := NewBuilder(policy(), "")
	doc := b.Build("https://img.example.com/task", "image generation", "", nil)

	require.Len(t, doc.Accepts, 1)
	terms := doc.Accepts[0]
	assert.Equal(t, types.ProtocolVersion, doc.Version)
	assert.Equal(t, "exact", terms.Scheme)
	assert.Equal(t, "base-sepolia", terms.Network)
	assert.Equal(t, policy().PayTo, terms.PayTo)
	// Price is string-exact, no floating rounding.
	assert.Equal(t, "50000000000000", terms.MaxAmountRequired)
	assert.Contains(t, terms.Resource, "address=0x384Aa214be0B279cbf211e9b2C992d8633F77848")
	assert.Nil(t, terms.Ext)
	assert.Empty(t, doc.Error)
}

func TestBuildChallengeWithReferrer(t *testing.T) {
	b := NewBuilder(policy(), "0x1111111111111111111111111111111111111111")
	doc := b.Build("https://img.example.com/task", "image generation", "partner-42", nil)

	require.NotNil(t, doc.Accepts[0].Ext)
	assert.Equal(t, "partner-42", doc.Accepts[0].Ext.Referrer)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", doc.Accepts[0].Asset)
}

func TestBuildChallengeSurfacesErrorInExtOnly(t *testing.T) {
	b := NewBuilder(policy(), "")
	verr := &types.VerificationResult{
		Valid:  false,
		Kind:   types.ErrAmountInsufficient,
		Detail: "paid 10, require at least 50000000000000",
	}
	doc := b.Build("https://img.example.com/task", "image generation", "", verr)

	// The mandatory payment fields survive a failed verification untouched.
	terms := doc.Accepts[0]
	assert.Equal(t, "50000000000000", terms.MaxAmountRequired)
	assert.Equal(t, policy().PayTo, terms.PayTo)

	require.NotNil(t, terms.Ext)
	assert.Equal(t, "AMOUNT_INSUFFICIENT", terms.Ext.Error)
	assert.NotEmpty(t, terms.Ext.ErrorDetails)
	assert.Equal(t, "AMOUNT_INSUFFICIENT", doc.Error)
}

func TestBuildChallengeIsFreshPerCall(t *testing.T) {
	b := NewBuilder(policy(), "")
	first := b.Build("https://a.example.com", "a", "", nil)
	second := b.Build("https://b.example.com", "b", "r", nil)

	assert.NotSame(t, first, second)
	assert.Nil(t, first.Accepts[0].Ext, "earlier documents must not inherit later annotations")
}
