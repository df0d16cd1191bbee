// Package ledger provides the append-only execution ledger.
//
// One row per (plan, asset, execution). The executor is the only writer;
// nothing in this application updates or deletes a record once written, and
// the repository interface deliberately exposes no way to do so.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/domain"
)

// Repository handles execution ledger operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// RecordExecution appends one execution record. The id is assigned by the
// database.
func (r *Repository) RecordExecution(rec domain.ExecutionRecord) error {
	amountUSD, _ := rec.AmountUSD.Float64()
	size, _ := rec.SizeReceived.Float64()
	price, _ := rec.CoinPriceUSD.Float64()
	fee, _ := rec.FeeUSD.Float64()

	executedAt := rec.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO sip_history
		(config_label, executed_at, coin, amount_usd, size_received, coin_price_usd, fee_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.PlanLabel, executedAt.Format(time.RFC3339), rec.Coin, amountUSD, size, price, fee)
	if err != nil {
		return fmt.Errorf("failed to record execution for plan %q: %w", rec.PlanLabel, err)
	}

	r.log.Info().
		Str("plan", rec.PlanLabel).
		Str("coin", rec.Coin).
		Str("amount_usd", rec.AmountUSD.String()).
		Msg("Execution recorded")
	return nil
}

// ListByPlan returns all execution records for a plan, oldest first.
func (r *Repository) ListByPlan(label string) ([]domain.ExecutionRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, config_label, executed_at, coin, amount_usd, size_received, coin_price_usd, fee_usd
		FROM sip_history WHERE config_label = ? ORDER BY executed_at, id
	`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for plan %q: %w", label, err)
	}
	defer rows.Close()

	var records []domain.ExecutionRecord
	for rows.Next() {
		var (
			rec                         domain.ExecutionRecord
			executedAt                  string
			amountUSD, size, price, fee float64
		)
		if err := rows.Scan(&rec.ID, &rec.PlanLabel, &executedAt, &rec.Coin, &amountUSD, &size, &price, &fee); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, executedAt)
		if err != nil {
			return nil, fmt.Errorf("malformed executed_at on record %d: %w", rec.ID, err)
		}
		rec.ExecutedAt = ts
		rec.AmountUSD = decimal.NewFromFloat(amountUSD)
		rec.SizeReceived = decimal.NewFromFloat(size)
		rec.CoinPriceUSD = decimal.NewFromFloat(price)
		rec.FeeUSD = decimal.NewFromFloat(fee)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TotalSpent returns the total USD spent under a plan, fees excluded.
func (r *Repository) TotalSpent(label string) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(
		"SELECT SUM(amount_usd) FROM sip_history WHERE config_label = ?", label,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum executions for plan %q: %w", label, err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(total.Float64), nil
}
