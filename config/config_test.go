package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payward-labs/agentgate/tier"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAgentName, "prompt-agent")
	t.Setenv(EnvListenAddr, "0.0.0.0:8080")
	t.Setenv(EnvNetwork, "base-sepolia")
	t.Setenv(EnvRPCEndpoint, "https://sepolia.base.org")
	t.Setenv(EnvPayToAddress, "0x384Aa214be0B279cbf211e9b2C992d8633F77848")
	t.Setenv(EnvUnitPrice, "50000000000000")
}

func TestFromEnv(t *testing.T) {
	validEnv(t)
	t.Setenv(EnvSignerKey, "0x4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "prompt-agent", cfg.AgentName)
	assert.Equal(t, "info", cfg.LogLevel, "defaulted")
	assert.Equal(t, "ETH", cfg.Currency, "defaulted")
	assert.NotContains(t, cfg.SignerKey, "0x", "key prefix is stripped on load")

	policy := cfg.PricingPolicy()
	require.NoError(t, policy.Validate())
	assert.Equal(t, "50000000000000", policy.UnitPrice.String())
	assert.Equal(t, policy.UnitPrice.String(), policy.MinAmount.String())
}

func TestFromEnvMissingRPC(t *testing.T) {
	validEnv(t)
	t.Setenv(EnvRPCEndpoint, "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPCEndpoint")
}

func TestFromEnvBadPayTo(t *testing.T) {
	validEnv(t)
	t.Setenv(EnvPayToAddress, "not-an-address")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvUnknownNetwork(t *testing.T) {
	validEnv(t)
	t.Setenv(EnvNetwork, "dogecoin")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown network")
}

func TestTierTableDefault(t *testing.T) {
	validEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	table, err := cfg.TierTable()
	require.NoError(t, err)
	assert.NotEmpty(t, table.Payload(tier.Common))
}

func TestTierTableConfigured(t *testing.T) {
	validEnv(t)
	t.Setenv(EnvTierWeights, "94.75, 5, 0.25")

	cfg, err := FromEnv()
	require.NoError(t, err)
	_, err = cfg.TierTable()
	require.NoError(t, err)
}

func TestTierTableMalformed(t *testing.T) {
	validEnv(t)
	for _, bad := range []string{"89,10", "a,b,c", "89;10;1"} {
		t.Setenv(EnvTierWeights, bad)
		_, err := FromEnv()
		assert.Error(t, err, bad)
	}
}
