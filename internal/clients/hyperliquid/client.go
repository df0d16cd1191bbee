// Package hyperliquid provides the trading-venue client: public /info
// market-data lookups and a signed /exchange order gateway.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/domain"
)

const (
	// MainnetAPIURL is the production API endpoint
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	// TestnetAPIURL is the testnet API endpoint
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
)

// Client talks to the venue's public /info endpoint. All methods are
// blocking with the embedded client's timeout; callers needing tighter
// bounds pass a context.
type Client struct {
	baseURL string
	address string // account address for balance queries
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new /info client for the given network.
func NewClient(baseURL, accountAddress string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		address: accountAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "hyperliquid-info").Logger(),
	}
}

// spotMeta mirrors the venue's spot metadata payload.
type spotMeta struct {
	Tokens []struct {
		Name       string `json:"name"`
		Index      int    `json:"index"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"tokens"`
	Universe []struct {
		Name   string `json:"name"`
		Tokens []int  `json:"tokens"` // [base token index, quote token index]
		Index  int    `json:"index"`
	} `json:"universe"`
}

// assetCtx carries the live mark price per listed spot market.
type assetCtx struct {
	Coin   string `json:"coin"`
	MarkPx string `json:"markPx"`
}

// SpotQuote resolves a market symbol like "UBTC/USDC" to its live price and
// size precision.
//
// Resolution walks the venue metadata: token name -> token index -> universe
// entry whose base is that token and whose quote is USDC (token index 0) ->
// mark price by the universe entry's internal coin name.
func (c *Client) SpotQuote(ctx context.Context, pair string) (domain.PricedPair, error) {
	meta, ctxs, err := c.spotMetaAndAssetCtxs(ctx)
	if err != nil {
		return domain.PricedPair{}, err
	}

	tokenName := pair
	if i := strings.Index(tokenName, "/"); i >= 0 {
		tokenName = tokenName[:i]
	}

	tokenIndex := -1
	szDecimals := 0
	for _, token := range meta.Tokens {
		if token.Name == tokenName {
			tokenIndex = token.Index
			szDecimals = token.SzDecimals
			break
		}
	}
	if tokenIndex < 0 {
		return domain.PricedPair{}, fmt.Errorf("token %q not found on venue", tokenName)
	}

	// Token index 0 is USDC; the extra check pins the quote side
	coinName := ""
	for _, market := range meta.Universe {
		if len(market.Tokens) == 2 && market.Tokens[0] == tokenIndex && market.Tokens[1] == 0 {
			coinName = market.Name
			break
		}
	}
	if coinName == "" {
		return domain.PricedPair{}, fmt.Errorf("no USDC spot market for token %q", tokenName)
	}

	for _, actx := range ctxs {
		if actx.Coin == coinName {
			price, err := decimal.NewFromString(actx.MarkPx)
			if err != nil {
				return domain.PricedPair{}, fmt.Errorf("malformed mark price %q for %s: %w", actx.MarkPx, pair, err)
			}
			return domain.PricedPair{
				Pair:       pair,
				Price:      price,
				SzDecimals: szDecimals,
			}, nil
		}
	}

	return domain.PricedPair{}, fmt.Errorf("no price for market %q", coinName)
}

// SpotBalances returns every funded spot balance for the account.
func (c *Client) SpotBalances(ctx context.Context) ([]domain.SpotBalance, error) {
	var result struct {
		Balances []struct {
			Coin  string `json:"coin"`
			Total string `json:"total"`
			Hold  string `json:"hold"`
		} `json:"balances"`
	}
	if err := c.post(ctx, map[string]any{"type": "spotClearinghouseState", "user": c.address}, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch spot balances: %w", err)
	}

	balances := make([]domain.SpotBalance, 0, len(result.Balances))
	for _, b := range result.Balances {
		total, err := decimal.NewFromString(b.Total)
		if err != nil {
			return nil, fmt.Errorf("malformed balance total %q for %s: %w", b.Total, b.Coin, err)
		}
		hold, err := decimal.NewFromString(b.Hold)
		if err != nil {
			return nil, fmt.Errorf("malformed balance hold %q for %s: %w", b.Hold, b.Coin, err)
		}
		balances = append(balances, domain.SpotBalance{Coin: b.Coin, Total: total, Hold: hold})
	}
	return balances, nil
}

// AccountValue returns the account's total equity in USD.
func (c *Client) AccountValue(ctx context.Context) (decimal.Decimal, error) {
	var result struct {
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
	}
	if err := c.post(ctx, map[string]any{"type": "clearinghouseState", "user": c.address}, &result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch account state: %w", err)
	}
	if result.MarginSummary.AccountValue == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(result.MarginSummary.AccountValue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed account value %q: %w", result.MarginSummary.AccountValue, err)
	}
	return value, nil
}

// spotAssetID returns the order-placement asset id for a market symbol.
// Spot markets are addressed as 10000 + universe index.
func (c *Client) spotAssetID(ctx context.Context, pair string) (int, error) {
	meta, _, err := c.spotMetaAndAssetCtxs(ctx)
	if err != nil {
		return 0, err
	}

	tokenName := pair
	if i := strings.Index(tokenName, "/"); i >= 0 {
		tokenName = tokenName[:i]
	}
	tokenIndex := -1
	for _, token := range meta.Tokens {
		if token.Name == tokenName {
			tokenIndex = token.Index
			break
		}
	}
	if tokenIndex < 0 {
		return 0, fmt.Errorf("token %q not found on venue", tokenName)
	}
	for _, market := range meta.Universe {
		if len(market.Tokens) == 2 && market.Tokens[0] == tokenIndex && market.Tokens[1] == 0 {
			return 10000 + market.Index, nil
		}
	}
	return 0, fmt.Errorf("no USDC spot market for token %q", tokenName)
}

func (c *Client) spotMetaAndAssetCtxs(ctx context.Context) (*spotMeta, []assetCtx, error) {
	// The endpoint answers [meta, ctxs] as a two-element array
	var raw []json.RawMessage
	if err := c.post(ctx, map[string]any{"type": "spotMetaAndAssetCtxs"}, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch spot metadata: %w", err)
	}
	if len(raw) != 2 {
		return nil, nil, fmt.Errorf("unexpected spot metadata shape: %d elements", len(raw))
	}

	var meta spotMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to decode spot metadata: %w", err)
	}
	var ctxs []assetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode asset contexts: %w", err)
	}
	return &meta, ctxs, nil
}

func (c *Client) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
