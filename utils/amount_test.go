package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("0x384Aa214be0B279cbf211e9b2C992d8633F77848"))
	assert.False(t, IsAddress("384Aa214be0B279cbf211e9b2C992d8633F77848"))
	assert.False(t, IsAddress("0x384Aa214be0B279cbf211e9b2C992d8633F7784"))
	assert.False(t, IsAddress("0x384Aa214be0B279cbf211e9b2C992d8633F7784g"))
	assert.False(t, IsAddress(""))
}

func TestIsTxHash(t *testing.T) {
	assert.True(t, IsTxHash("0x9ea47c158978d9bbb7fbf6e9e2b0a34f2db2a1a557a6821b2ceb5c2ec23fc2ba"))
	assert.False(t, IsTxHash("0x9ea47c15"))
	assert.False(t, IsTxHash("9ea47c158978d9bbb7fbf6e9e2b0a34f2db2a1a557a6821b2ceb5c2ec23fc2ba"))
}

func TestParseMinorUnits(t *testing.T) {
	v, err := ParseMinorUnits("50000000000000")
	require.NoError(t, err)
	assert.Equal(t, "50000000000000", v.String())

	for _, bad := range []string{"", "-1", "1.5", "1e18", "wei"} {
		_, err := ParseMinorUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestMajorUnitRoundTrip(t *testing.T) {
	wei := big.NewInt(50_000_000_000_000)
	assert.Equal(t, "0.00005", ToMajorUnits(wei, EtherDecimals))

	back, err := FromMajorUnits("0.00005", EtherDecimals)
	require.NoError(t, err)
	assert.Equal(t, wei.String(), back.String())
}

func TestFromMajorUnitsTooPrecise(t *testing.T) {
	_, err := FromMajorUnits("0.0000000000000000001", EtherDecimals) // 19 places
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimal places")
}
