package hyperliquid

import (
	"context"

	"github.com/dcabot/hypersip/internal/domain"
)

// Resolver turns an operator-facing coin symbol into a priced venue pair
// for one network. It binds the static symbol mapping to the live quote
// lookup, which is exactly what intake needs per composition entry.
type Resolver struct {
	market  domain.MarketData
	mainnet bool
}

// NewResolver creates a resolver over a market-data source.
func NewResolver(market domain.MarketData, mainnet bool) *Resolver {
	return &Resolver{market: market, mainnet: mainnet}
}

// ResolvePair maps the coin to its market symbol and fetches a live quote.
func (r *Resolver) ResolvePair(ctx context.Context, coin string) (domain.PricedPair, error) {
	pair, err := ResolvePair(coin, r.mainnet)
	if err != nil {
		return domain.PricedPair{}, err
	}

	quote, err := r.market.SpotQuote(ctx, pair)
	if err != nil {
		return domain.PricedPair{}, err
	}
	quote.Coin = coin
	return quote, nil
}
