package types

// Network identifies a supported EVM chain.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia"
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy"
	NetworkEthereum    Network = "ethereum"
	NetworkSepolia     Network = "sepolia"
)

// networkChainIDs maps network names to EVM chain IDs. The chain ID observed
// over RPC is still authoritative; this table only sanity-checks config.
var networkChainIDs = map[Network]uint64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
	NetworkPolygon:     137,
	NetworkPolygonAmoy: 80002,
	NetworkEthereum:    1,
	NetworkSepolia:     11155111,
}

// ChainID returns the chain ID for a known network, or false for an
// unrecognized one.
func (n Network) ChainID() (uint64, bool) {
	id, ok := networkChainIDs[n]
	return id, ok
}

func (n Network) String() string { return string(n) }

// IsTestnet reports whether the network is a test network.
func (n Network) IsTestnet() bool {
	switch n {
	case NetworkBaseSepolia, NetworkPolygonAmoy, NetworkSepolia:
		return true
	}
	return false
}
