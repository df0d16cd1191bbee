// Package allocation converts percentage weights and live prices into exact,
// venue-legal order quantities.
//
// Sizing is a pure function: all prices are supplied by the caller, so the
// math is independently testable with no I/O.
package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/domain"
)

// MinOrderNotional is the venue's minimum order value in USD. Legs sized
// below this will be rejected at execution time, so intake refuses them
// up front.
var MinOrderNotional = decimal.NewFromInt(11)

// Sizing is the computed order for one asset of a plan.
type Sizing struct {
	// Quantity is the order size, rounded half-to-even at the venue's
	// size precision for the pair.
	Quantity decimal.Decimal
	// NotionalUSD is the exact USD share of the budget before rounding.
	NotionalUSD decimal.Decimal
	// Price is the live price the sizing was computed against.
	Price decimal.Decimal
}

// PriceUnavailableError reports a requested asset with no resolved price.
// It aborts the whole sizing call; there is never a partial result.
type PriceUnavailableError struct {
	Coin string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("price not available for %s", e.Coin)
}

// Size computes per-asset order quantities and USD notionals for a budget
// split by composition weights.
//
// For each asset with weight w: notional = budget * w / 100 and
// quantity = notional / price, rounded half-to-even at the pair's size
// precision. A quantity that rounds to zero is returned as zero, never
// silently dropped; the caller decides whether that is acceptable (see
// CheckViolations).
func Size(composition map[string]int, pairs []domain.PricedPair, budgetUSD decimal.Decimal) (map[string]Sizing, error) {
	prices := make(map[string]domain.PricedPair, len(pairs))
	for _, p := range pairs {
		prices[p.Coin] = p
	}

	hundred := decimal.NewFromInt(100)

	result := make(map[string]Sizing, len(composition))
	for coin, weight := range composition {
		pair, ok := prices[coin]
		if !ok || pair.Price.IsZero() {
			return nil, &PriceUnavailableError{Coin: coin}
		}

		notional := budgetUSD.Mul(decimal.NewFromInt(int64(weight))).Div(hundred)
		qty := notional.Div(pair.Price).RoundBank(int32(pair.SzDecimals))

		result[coin] = Sizing{
			Quantity:    qty,
			NotionalUSD: notional,
			Price:       pair.Price,
		}
	}

	return result, nil
}

// Violation is a user-correctable sizing problem for one leg of a plan.
type Violation struct {
	Coin   string
	Sizing Sizing
	Reason string
}

// CheckViolations runs the downstream validation on a sizing result: every
// quantity must round to a strictly positive value and every notional must
// meet the venue minimum. All violations are reported together so the
// operator can fix them in one pass.
func CheckViolations(sizings map[string]Sizing) []Violation {
	coins := make([]string, 0, len(sizings))
	for coin := range sizings {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	var violations []Violation
	for _, coin := range coins {
		s := sizings[coin]
		switch {
		case !s.Quantity.IsPositive():
			violations = append(violations, Violation{
				Coin:   coin,
				Sizing: s,
				Reason: fmt.Sprintf("quantity %s rounds to zero at the venue's precision", s.Quantity),
			})
		case s.NotionalUSD.LessThan(MinOrderNotional):
			violations = append(violations, Violation{
				Coin:   coin,
				Sizing: s,
				Reason: fmt.Sprintf("notional $%s is below the $%s minimum order value", s.NotionalUSD, MinOrderNotional),
			})
		}
	}
	return violations
}
