package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketData provides read-only spot market lookups.
// Implementations resolve a venue market symbol to its live price and the
// size precision the venue accepts for that market.
type MarketData interface {
	// SpotQuote returns the live price and size precision for a market
	// symbol like "UBTC/USDC". Unknown symbols are an error.
	SpotQuote(ctx context.Context, pair string) (PricedPair, error)
}

// Exchange is the full trading-venue collaborator. Network transport and
// request signing live behind this interface; everything above it is
// testable with an in-memory fake.
type Exchange interface {
	MarketData

	// SpotBalances returns every funded spot balance for the configured
	// account address.
	SpotBalances(ctx context.Context) ([]SpotBalance, error)

	// AccountValue returns the account's total equity in USD.
	AccountValue(ctx context.Context) (decimal.Decimal, error)

	// PlaceOrder submits a spot limit order.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// CancelOrder cancels a resting order by id.
	CancelOrder(ctx context.Context, pair string, orderID int64) error
}
