// Package domain holds the core types shared across modules.
// The domain layer is pure: no database handles, no HTTP clients, no loggers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a named recurring-purchase definition.
// The label is the primary key (case-sensitive, at most 50 characters).
// Composition maps asset symbol to an integer percentage weight; weights
// always sum to exactly 100.
type Plan struct {
	Label       string
	Composition map[string]int
	Interval    string // canonical form, e.g. "4h"
	BudgetUSD   decimal.Decimal
	Enabled     bool
	CreatedAt   time.Time
}

// ExecutionRecord is one immutable ledger entry: a single asset purchase
// performed under a plan. Records are append-only; they are written by the
// executor and never mutated by this application.
type ExecutionRecord struct {
	ID           int64
	PlanLabel    string
	ExecutedAt   time.Time
	Coin         string
	AmountUSD    decimal.Decimal
	SizeReceived decimal.Decimal
	CoinPriceUSD decimal.Decimal
	FeeUSD       decimal.Decimal
}

// PricedPair is a spot pair with a live price, resolved fresh per intake
// session. Never persisted or cached across sessions.
type PricedPair struct {
	Coin       string // operator-facing symbol, e.g. "BTC"
	Pair       string // venue market symbol, e.g. "UBTC/USDC"
	Price      decimal.Decimal
	SzDecimals int // decimal places the venue accepts for order size
}

// SpotBalance is one funded token balance on the venue.
type SpotBalance struct {
	Coin  string
	Total decimal.Decimal
	Hold  decimal.Decimal
}

// OrderRequest describes a spot limit order.
type OrderRequest struct {
	Pair        string
	IsBuy       bool
	Size        decimal.Decimal
	LimitPrice  decimal.Decimal
	TimeInForce string // "Ioc" or "Gtc"
}

// OrderStatus is the venue's disposition of a placed order.
type OrderStatus string

const (
	// OrderFilled - the order matched immediately
	OrderFilled OrderStatus = "filled"
	// OrderResting - the order is sitting in the book
	OrderResting OrderStatus = "resting"
	// OrderRejected - the venue refused or could not match the order;
	// Reason carries the venue's message
	OrderRejected OrderStatus = "rejected"
)

// OrderResult is the outcome of placing an order.
type OrderResult struct {
	Status  OrderStatus
	OrderID int64  // set when Status is OrderResting
	Reason  string // set when Status is OrderRejected
}
