// Package plan provides the repository for persisted plan definitions.
// Plans are stored in the sip_config table; the label column is the primary
// key, so uniqueness is ultimately enforced by the storage layer. The
// repository's own pre-insert lookup only exists to give the operator a
// friendlier rejection before the constraint fires.
package plan

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/domain"
)

// ErrDuplicateLabel is returned when adding a plan whose label already
// exists. Expected and user-recoverable; reported, not logged as a fault.
var ErrDuplicateLabel = errors.New("plan label already exists")

// MaxLabelLength is the longest accepted plan label.
const MaxLabelLength = 50

// Repository handles plan persistence. Every method is a single-statement
// transaction; nothing holds a connection across calls.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new plan repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "plan").Logger(),
	}
}

// Add inserts a new plan. All fields are written atomically in one insert;
// a plan is never partially persisted.
//
// Returns ErrDuplicateLabel if the label is already used. The check runs
// immediately before the insert, and the primary key backs it up: if another
// writer wins the race between check and insert, the constraint violation is
// mapped to the same error.
func (r *Repository) Add(p domain.Plan) error {
	var exists int
	err := r.db.QueryRow("SELECT 1 FROM sip_config WHERE label = ?", p.Label).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, p.Label)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check for existing plan %q: %w", p.Label, err)
	}

	coinsJSON, err := json.Marshal(p.Composition)
	if err != nil {
		return fmt.Errorf("failed to encode composition for plan %q: %w", p.Label, err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	budget, _ := p.BudgetUSD.Float64()
	_, err = r.db.Exec(`
		INSERT INTO sip_config (label, coins, interval, amount, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Label, string(coinsJSON), p.Interval, budget, boolToInt(p.Enabled), createdAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, p.Label)
		}
		return fmt.Errorf("failed to insert plan %q: %w", p.Label, err)
	}

	r.log.Info().Str("label", p.Label).Msg("Plan added")
	return nil
}

// GetByLabel fetches a plan by its label (case-sensitive exact match).
// Returns nil if no such plan exists (not an error).
func (r *Repository) GetByLabel(label string) (*domain.Plan, error) {
	row := r.db.QueryRow(`
		SELECT label, coins, interval, amount, enabled, created_at
		FROM sip_config WHERE label = ?
	`, label)

	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %q: %w", label, err)
	}
	return p, nil
}

// List returns all plans, enabled or not.
func (r *Repository) List() ([]domain.Plan, error) {
	return r.list("SELECT label, coins, interval, amount, enabled, created_at FROM sip_config ORDER BY created_at")
}

// ListEnabled returns only the plans the executor should run.
func (r *Repository) ListEnabled() ([]domain.Plan, error) {
	return r.list("SELECT label, coins, interval, amount, enabled, created_at FROM sip_config WHERE enabled = 1 ORDER BY created_at")
}

func (r *Repository) list(query string) ([]domain.Plan, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// SetEnabled flips a plan's enabled flag.
func (r *Repository) SetEnabled(label string, enabled bool) error {
	res, err := r.db.Exec("UPDATE sip_config SET enabled = ? WHERE label = ?", boolToInt(enabled), label)
	if err != nil {
		return fmt.Errorf("failed to update plan %q: %w", label, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no plan with label %q", label)
	}
	r.log.Info().Str("label", label).Bool("enabled", enabled).Msg("Plan enabled flag updated")
	return nil
}

// Delete removes a plan by label.
func (r *Repository) Delete(label string) error {
	if _, err := r.db.Exec("DELETE FROM sip_config WHERE label = ?", label); err != nil {
		return fmt.Errorf("failed to delete plan %q: %w", label, err)
	}
	r.log.Info().Str("label", label).Msg("Plan deleted")
	return nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (*domain.Plan, error) {
	var (
		p         domain.Plan
		coinsJSON string
		amount    float64
		enabled   int
		createdAt string
	)
	if err := s.Scan(&p.Label, &coinsJSON, &p.Interval, &amount, &enabled, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(coinsJSON), &p.Composition); err != nil {
		return nil, fmt.Errorf("malformed composition for plan %q: %w", p.Label, err)
	}
	p.BudgetUSD = decimal.NewFromFloat(amount)
	p.Enabled = enabled != 0

	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("malformed created_at for plan %q: %w", p.Label, err)
	}
	p.CreatedAt = ts

	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is the driver's primary key /
// unique constraint error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: sip_config.label")
}
