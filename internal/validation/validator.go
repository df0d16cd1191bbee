// Package validation gates expensive exchange validation behind a content
// hash of the full application configuration.
//
// A successful validation pass proves four things: the configuration is
// structurally sound, the messaging credentials reach the operator, the
// venue is reachable with a funded spot account, and the trading credentials
// can actually place orders. The last proof requires a real, capital-touching
// probe order, so the external checks only run when the configuration has
// changed since the last successful pass.
package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/config"
	"github.com/dcabot/hypersip/internal/domain"
	"github.com/dcabot/hypersip/internal/modules/settings"
)

// Probe parameters: buy a small size at half the live price. An IOC order
// that far from the market cannot fill; the venue either reports it could
// not match (credentials proven) or, unexpectedly, lets it rest (cancelled
// immediately).
var (
	probePair  = "UETH/USDC"
	probeSize  = decimal.NewFromFloat(0.05)
	probeRatio = decimal.NewFromFloat(0.5)
)

// noMatchPrefix is the venue's message for an IOC order that found no
// counterparty; for the probe this is the expected success outcome.
const noMatchPrefix = "Order could not immediately match"

// ConfigError aggregates every validation failure into one error. Startup
// treats it as fatal; there are no automatic retries.
type ConfigError struct {
	Causes []string
}

func (e *ConfigError) Error() string {
	return "config validation failed:\n" + strings.Join(e.Causes, "\n")
}

// ChatAPI is the slice of the messaging platform the validator needs:
// proof that the bot credentials are live and the operator chat is
// reachable.
type ChatAPI interface {
	VerifyOperator(ctx context.Context, userID int64) error
}

// Validator checks whether the configuration changed since the last
// successful external validation, and runs that validation when it did.
type Validator struct {
	state    *settings.Repository
	chat     ChatAPI
	exchange domain.Exchange
	log      zerolog.Logger
}

// New creates a validator. The chat and exchange sessions must already be
// constructed; establishing them is part of startup whether or not the
// expensive checks run (credentials are not durable across restarts).
func New(state *settings.Repository, chat ChatAPI, exchange domain.Exchange, log zerolog.Logger) *Validator {
	return &Validator{
		state:    state,
		chat:     chat,
		exchange: exchange,
		log:      log.With().Str("service", "validation").Logger(),
	}
}

// Hash computes the content hash of the full configuration: deterministic
// serialization (struct field order is fixed), then SHA-256.
func Hash(cfg *config.Config) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize config for hashing: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// NeedsRevalidation reports whether the expensive external validation must
// run: true when the current config hash differs from the last successfully
// validated one, or when no prior state exists.
func (v *Validator) NeedsRevalidation(cfg *config.Config) (bool, error) {
	current, err := Hash(cfg)
	if err != nil {
		return false, err
	}
	last, err := v.state.Get(settings.KeyConfigHash)
	if err != nil {
		return false, err
	}
	return last == nil || *last != current, nil
}

// Validate runs the full startup validation sequence. When the config hash
// is unchanged the probe steps are skipped; the exchange session itself was
// already re-established by the caller either way.
//
// On failure every finding is aggregated into a single *ConfigError. No
// partial success is recorded: the hash is persisted only after the whole
// sequence passes.
func (v *Validator) Validate(ctx context.Context, cfg *config.Config) error {
	needed, err := v.NeedsRevalidation(cfg)
	if err != nil {
		return &ConfigError{Causes: []string{fmt.Sprintf("failed to read validation state: %v", err)}}
	}
	if !needed {
		v.log.Info().Msg("Config unchanged since last successful validation, skipping exchange probes")
		return nil
	}

	v.log.Info().Msg("Config changed, running full exchange validation")

	// Structural checks first; external calls are pointless against a
	// malformed config
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Causes: []string{err.Error()}}
	}

	var causes []string

	if err := v.chat.VerifyOperator(ctx, cfg.Telegram.UserID); err != nil {
		causes = append(causes, fmt.Sprintf("telegram check failed: %v", err))
	}

	if err := v.checkFunding(ctx); err != nil {
		causes = append(causes, err.Error())
	} else if err := v.probeOrder(ctx); err != nil {
		// The probe only runs against a funded, reachable account;
		// its failure is a distinct finding
		causes = append(causes, err.Error())
	}

	if len(causes) > 0 {
		return &ConfigError{Causes: causes}
	}

	hash, err := Hash(cfg)
	if err != nil {
		return &ConfigError{Causes: []string{err.Error()}}
	}
	if err := v.state.Set(settings.KeyConfigHash, hash); err != nil {
		return &ConfigError{Causes: []string{fmt.Sprintf("failed to persist validation state: %v", err)}}
	}

	v.log.Info().Str("hash", hash[:12]).Msg("Exchange validation successful")
	return nil
}

// checkFunding verifies venue connectivity and that the account holds at
// least one funded spot balance. Spot is where plans buy, so perp equity
// alone never passes; it is only surfaced to explain the failure.
func (v *Validator) checkFunding(ctx context.Context) error {
	balances, err := v.exchange.SpotBalances(ctx)
	if err != nil {
		return fmt.Errorf("venue connectivity check failed: %w", err)
	}
	if len(balances) == 0 {
		if value, err := v.exchange.AccountValue(ctx); err == nil && !value.IsZero() {
			v.log.Warn().Str("account_value", value.String()).Msg("Account holds perp equity but no spot balances")
		}
		return fmt.Errorf("no available balances; deposit some USDC on the exchange to start")
	}

	for _, b := range balances {
		v.log.Info().Str("coin", b.Coin).Str("total", b.Total.String()).Msg("Spot balance")
	}
	return nil
}

// probeOrder proves write-capable credentials: place a deliberately
// non-marketable IOC buy and verify it did not rest (cancelling it if it did).
func (v *Validator) probeOrder(ctx context.Context) error {
	quote, err := v.exchange.SpotQuote(ctx, probePair)
	if err != nil {
		return fmt.Errorf("probe price lookup failed: %w", err)
	}

	limitPrice := quote.Price.Mul(probeRatio).Floor()
	v.log.Info().
		Str("pair", probePair).
		Str("size", probeSize.String()).
		Str("limit_price", limitPrice.String()).
		Msg("Placing probe order")

	result, err := v.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Pair:        probePair,
		IsBuy:       true,
		Size:        probeSize,
		LimitPrice:  limitPrice,
		TimeInForce: "Ioc",
	})
	if err != nil {
		return fmt.Errorf("probe order failed: %w", err)
	}

	switch result.Status {
	case domain.OrderRejected:
		if strings.HasPrefix(result.Reason, noMatchPrefix) {
			// Expected: a half-price IOC buy cannot match
			v.log.Info().Msg("Probe order behaved as expected")
			return nil
		}
		return fmt.Errorf("probe order rejected: %s", result.Reason)
	case domain.OrderResting:
		// IOC should never rest, but if the venue let it, clean up
		if err := v.exchange.CancelOrder(ctx, probePair, result.OrderID); err != nil {
			return fmt.Errorf("probe order rested and cancel failed: %w", err)
		}
		v.log.Warn().Int64("oid", result.OrderID).Msg("Probe order rested; cancelled")
		return nil
	default:
		return fmt.Errorf("probe order unexpectedly filled")
	}
}
