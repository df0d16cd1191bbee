package hyperliquid

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Spot tokens on the venue carry a U-prefix for bridged majors; every spot
// pair quotes in USDC. The operator types "BTC", the venue knows "UBTC" and
// the market symbol is "UBTC/USDC".
var mainnetTokens = map[string]string{
	"BTC": "UBTC",
	"ETH": "UETH",
	"SOL": "USOL",
}

// Testnet lists only a handful of tradable spot pairs, so it gets an
// explicit allowlist instead of a naming rule.
var testnetPairs = map[string]string{
	"HYPE": "HYPE/USDC",
	"ETH":  "UETH/USDC",
	"PURR": "PURR/USDC",
}

// ResolvePair maps an operator-facing coin symbol to the venue's spot market
// symbol for the given network.
func ResolvePair(coin string, mainnet bool) (string, error) {
	if mainnet {
		token, ok := mainnetTokens[coin]
		if !ok {
			// Unmapped coins pass through; the venue may list them
			// under their plain symbol and the quote lookup will
			// reject them if not
			token = coin
		}
		return token + "/USDC", nil
	}

	pair, ok := testnetPairs[coin]
	if !ok {
		return "", fmt.Errorf("coin %s is not available on testnet (available: %v)", coin, AvailableTestnetCoins())
	}
	return pair, nil
}

// AvailableTestnetCoins returns the coins tradable on testnet, sorted for
// stable user-facing messages.
func AvailableTestnetCoins() []string {
	coins := lo.Keys(testnetPairs)
	sort.Strings(coins)
	return coins
}
