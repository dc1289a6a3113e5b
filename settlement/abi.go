package settlement

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/payward-labs/agentgate/tier"
)

// The mint contract exposes three functionally identical entry points that
// differ only by the reward class they unlock. Signatures are fixed
// externally; this ABI mirrors the deployed contract.
const mintContractABI = `[
  {"type":"function","name":"mintCommon","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"description","type":"string"},{"name":"referrer","type":"string"}],"outputs":[]},
  {"type":"function","name":"mintRare","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"description","type":"string"},{"name":"referrer","type":"string"}],"outputs":[]},
  {"type":"function","name":"mintSuperRare","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"description","type":"string"},{"name":"referrer","type":"string"}],"outputs":[]},
  {"type":"event","name":"RewardMinted","anonymous":false,"inputs":[{"name":"to","type":"address","indexed":true},{"name":"tier","type":"uint8","indexed":false},{"name":"note","type":"string","indexed":false}]},
  {"type":"event","name":"PaymentReceived","anonymous":false,"inputs":[{"name":"payer","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var contractABI = mustParseABI(mintContractABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("settlement: invalid embedded contract ABI: " + err.Error())
	}
	return parsed
}

// methodForTier maps a drawn reward tier to the contract entry point that
// unlocks it.
func methodForTier(t tier.Tier) string {
	switch t {
	case tier.SuperRare:
		return "mintSuperRare"
	case tier.Rare:
		return "mintRare"
	default:
		return "mintCommon"
	}
}

// RewardMintedEvent is the decoded form of the contract's RewardMinted log.
type RewardMintedEvent struct {
	To   string
	Tier uint8
	Note string
}

// PaymentReceivedEvent is the decoded form of the contract's PaymentReceived
// log.
type PaymentReceivedEvent struct {
	Payer  string
	Amount string
}
