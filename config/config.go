// Package config loads and validates agent configuration from the
// environment. Loading happens once at startup; an invalid configuration
// fails fast rather than surfacing mid-request.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/payward-labs/agentgate/tier"
	"github.com/payward-labs/agentgate/types"
	"github.com/payward-labs/agentgate/utils"
)

// Environment variable names.
const (
	EnvAgentName     = "AGENT_NAME"
	EnvListenAddr    = "LISTEN_ADDR"
	EnvLogLevel      = "LOG_LEVEL"
	EnvNetwork       = "CHAIN_NETWORK"
	EnvRPCEndpoint   = "CHAIN_RPC_ENDPOINT"
	EnvPayToAddress  = "PAY_TO_ADDRESS"
	EnvMintContract  = "MINT_CONTRACT_ADDRESS"
	EnvUnitPrice     = "UNIT_PRICE_WEI"
	EnvCurrency      = "PAY_CURRENCY"
	EnvSignerKey     = "SIGNER_PRIVATE_KEY" // Sensitive
	EnvRedisURL      = "REDIS_URL"
	EnvTierWeights   = "TIER_WEIGHTS"
	EnvDownstreamURL = "DOWNSTREAM_AGENT_URL"
)

// Config is the validated runtime configuration of one agent process.
type Config struct {
	AgentName  string `validate:"required"`
	ListenAddr string `validate:"required,hostname_port"`
	LogLevel   string `validate:"omitempty,oneof=debug info warn error"`

	Network      string `validate:"required"`
	RPCEndpoint  string `validate:"required,url"`
	PayTo        string `validate:"required,eth_addr"`
	MintContract string `validate:"omitempty,eth_addr"`
	UnitPrice    string `validate:"required,number"`
	Currency     string `validate:"required"`

	// SignerKey is required only for agents that relay payments downstream.
	SignerKey string `validate:"omitempty,hexadecimal"`

	// RedisURL enables the durable replay guard; empty selects the in-memory
	// store.
	RedisURL string `validate:"omitempty,uri"`

	// TierWeights is a "common,rare,super_rare" percentage triple; empty
	// keeps the default partition.
	TierWeights string

	// DownstreamURL is the prompt agent a relaying image agent pays.
	DownstreamURL string `validate:"omitempty,url"`
}

// FromEnv reads the configuration from the environment and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AgentName:     os.Getenv(EnvAgentName),
		ListenAddr:    getenvDefault(EnvListenAddr, ":8080"),
		LogLevel:      getenvDefault(EnvLogLevel, "info"),
		Network:       getenvDefault(EnvNetwork, "base-sepolia"),
		RPCEndpoint:   os.Getenv(EnvRPCEndpoint),
		PayTo:         os.Getenv(EnvPayToAddress),
		MintContract:  os.Getenv(EnvMintContract),
		UnitPrice:     getenvDefault(EnvUnitPrice, "0"),
		Currency:      getenvDefault(EnvCurrency, "ETH"),
		SignerKey:     strings.TrimPrefix(os.Getenv(EnvSignerKey), "0x"),
		RedisURL:      os.Getenv(EnvRedisURL),
		TierWeights:   os.Getenv(EnvTierWeights),
		DownstreamURL: os.Getenv(EnvDownstreamURL),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints plus the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, ok := types.Network(c.Network).ChainID(); !ok {
		return fmt.Errorf("invalid configuration: unknown network %q", c.Network)
	}
	if _, err := utils.ParseMinorUnits(c.UnitPrice); err != nil {
		return fmt.Errorf("invalid configuration: unit price: %w", err)
	}
	if c.PayTo != "" && !utils.IsAddress(c.PayTo) {
		return fmt.Errorf("invalid configuration: pay-to address %q", c.PayTo)
	}
	if _, err := c.tierWeights(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// PricingPolicy converts the chain-facing fields into the policy the
// verifier and challenge builder consume.
func (c *Config) PricingPolicy() *types.PricingPolicy {
	price, _ := utils.ParseMinorUnits(c.UnitPrice)
	return &types.PricingPolicy{
		UnitPrice:   price,
		MinAmount:   new(big.Int).Set(price),
		Currency:    c.Currency,
		Network:     c.Network,
		PayTo:       c.PayTo,
		RPCEndpoint: c.RPCEndpoint,
	}
}

// TierTable builds the reward partition, defaulting when unconfigured.
func (c *Config) TierTable() (*tier.Table, error) {
	weights, err := c.tierWeights()
	if err != nil {
		return nil, err
	}
	if weights == nil {
		return tier.MustDefault(), nil
	}
	return tier.NewTable(weights, tier.DefaultPayloads)
}

func (c *Config) tierWeights() (map[tier.Tier]float64, error) {
	if c.TierWeights == "" {
		return nil, nil
	}
	parts := strings.Split(c.TierWeights, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("tier weights %q: want three comma-separated percentages", c.TierWeights)
	}
	order := []tier.Tier{tier.Common, tier.Rare, tier.SuperRare}
	weights := make(map[tier.Tier]float64, 3)
	for i, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("tier weights %q: %w", c.TierWeights, err)
		}
		weights[order[i]] = w
	}
	return weights, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
