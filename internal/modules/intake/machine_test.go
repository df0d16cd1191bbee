package intake_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcabot/hypersip/internal/database"
	"github.com/dcabot/hypersip/internal/domain"
	"github.com/dcabot/hypersip/internal/modules/intake"
	"github.com/dcabot/hypersip/internal/modules/plan"
)

// fakeResolver serves canned priced pairs, mimicking the mainnet mapping.
type fakeResolver struct {
	prices map[string]domain.PricedPair
	err    error
}

func (f *fakeResolver) ResolvePair(_ context.Context, coin string) (domain.PricedPair, error) {
	if f.err != nil {
		return domain.PricedPair{}, f.err
	}
	pair, ok := f.prices[coin]
	if !ok {
		return domain.PricedPair{}, errors.New("coin " + coin + " is not available on testnet")
	}
	return pair, nil
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{prices: map[string]domain.PricedPair{
		"BTC": {Coin: "BTC", Pair: "UBTC/USDC", Price: decimal.NewFromInt(50000), SzDecimals: 5},
		"ETH": {Coin: "ETH", Pair: "UETH/USDC", Price: decimal.NewFromInt(2500), SzDecimals: 4},
	}}
}

func setup(t *testing.T) (*intake.Machine, *plan.Repository) {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	plans := plan.NewRepository(db.Conn(), zerolog.Nop())
	return intake.New(plans, defaultResolver(), zerolog.Nop()), plans
}

func joined(r intake.Reply) string {
	return strings.Join(r.Messages, "\n---\n")
}

// walk drives a session from the start through the given inputs.
func walk(t *testing.T, m *intake.Machine, inputs ...string) (*intake.Session, intake.Reply) {
	t.Helper()
	s, r := m.Begin(1001)
	for _, input := range inputs {
		r = m.HandleMessage(context.Background(), s, input)
	}
	return s, r
}

func TestBegin(t *testing.T) {
	m, _ := setup(t)

	s, r := m.Begin(1001)

	assert.Equal(t, intake.StateLabel, s.State)
	assert.EqualValues(t, 1001, s.ChatID)
	assert.Contains(t, joined(r), "name")
}

func TestLabelStep(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "   ")
		assert.Equal(t, intake.StateLabel, s.State)
		assert.Contains(t, joined(r), "between 1 and 50")
	})

	t.Run("rejects over 50 characters", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, strings.Repeat("x", 51))
		assert.Equal(t, intake.StateLabel, s.State)
		assert.Contains(t, joined(r), "between 1 and 50")
	})

	t.Run("length is counted in characters, not bytes", func(t *testing.T) {
		m, _ := setup(t)
		// 30 characters, 90 bytes
		s, _ := walk(t, m, strings.Repeat("币", 30))
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Equal(t, strings.Repeat("币", 30), s.Label)

		m2, _ := setup(t)
		s2, _ := walk(t, m2, strings.Repeat("币", 51))
		assert.Equal(t, intake.StateLabel, s2.State)
	})

	t.Run("rejects existing label", func(t *testing.T) {
		m, plans := setup(t)
		require.NoError(t, plans.Add(domain.Plan{
			Label: "taken", Composition: map[string]int{"BTC": 100},
			Interval: "1d", BudgetUSD: decimal.NewFromInt(100), Enabled: true,
		}))

		s, r := walk(t, m, "taken")
		assert.Equal(t, intake.StateLabel, s.State)
		assert.Contains(t, joined(r), "already exists")
	})

	t.Run("accepts and advances", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha")
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Equal(t, "alpha", s.Label)
		assert.Contains(t, joined(r), "composition")
	})
}

func TestCompositionStep(t *testing.T) {
	t.Run("rejects weights not summing to 100", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha", "BTC - 60\nETH - 30")
		assert.Equal(t, intake.StateComposition, s.State, "session stays in the composition state")
		assert.Contains(t, joined(r), "must be 100")
		assert.Nil(t, s.Composition, "nothing stored on failure")
	})

	t.Run("rejects missing separator", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha", "BTC 60")
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Contains(t, joined(r), "separator")
	})

	t.Run("rejects weight above 100", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha", "BTC - 160\nETH - -60")
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Contains(t, joined(r), "Invalid composition")
	})

	t.Run("rejects non-integer weight", func(t *testing.T) {
		m, _ := setup(t)
		s, _ := walk(t, m, "alpha", "BTC - 60.5\nETH - 39.5")
		assert.Equal(t, intake.StateComposition, s.State)
	})

	t.Run("rejects unsupported coin and keeps session", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha", "DOGE - 100")
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Contains(t, joined(r), "DOGE")
	})

	t.Run("accepts, resolves pairs and advances", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, "alpha", "BTC - 60\nETH - 40")

		assert.Equal(t, intake.StateBudget, s.State)
		assert.Equal(t, map[string]int{"BTC": 60, "ETH": 40}, s.Composition)
		require.Len(t, s.Pairs, 2)

		out := joined(r)
		assert.Contains(t, out, "UBTC/USDC")
		assert.Contains(t, out, "UETH/USDC")
		assert.Contains(t, out, "invest per SIP")
	})

	t.Run("resolver outage re-prompts instead of crashing", func(t *testing.T) {
		db, err := database.New(database.Config{Path: ":memory:"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		plans := plan.NewRepository(db.Conn(), zerolog.Nop())
		m := intake.New(plans, &fakeResolver{err: errors.New("venue timeout")}, zerolog.Nop())

		s, r := walk(t, m, "alpha", "BTC - 100")
		assert.Equal(t, intake.StateComposition, s.State)
		assert.Contains(t, joined(r), "Invalid composition")
	})
}

func TestBudgetStep(t *testing.T) {
	start := []string{"alpha", "BTC - 60\nETH - 40"}

	t.Run("rejects non-numeric", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, append(start, "lots")...)
		assert.Equal(t, intake.StateBudget, s.State)
		assert.Contains(t, joined(r), "Invalid number")
	})

	t.Run("rejects decimal amount", func(t *testing.T) {
		m, _ := setup(t)
		s, _ := walk(t, m, append(start, "100.50")...)
		assert.Equal(t, intake.StateBudget, s.State)
	})

	t.Run("rejects zero", func(t *testing.T) {
		m, _ := setup(t)
		s, _ := walk(t, m, append(start, "0")...)
		assert.Equal(t, intake.StateBudget, s.State)
	})

	t.Run("under-funded legs reported together, session stays", func(t *testing.T) {
		m, _ := setup(t)
		// $25: BTC leg $15, ETH leg $10 — ETH is below the $11 minimum
		s, r := walk(t, m, append(start, "25")...)

		assert.Equal(t, intake.StateBudget, s.State, "user must re-enter a larger budget")
		out := joined(r)
		assert.Contains(t, out, "ETH")
		assert.Contains(t, out, "larger SIP amount")
		assert.Zero(t, s.BudgetUSD, "budget not stored on violation")
	})

	t.Run("accepts with preview and advances", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, append(start, "1000$")...)

		assert.Equal(t, intake.StateInterval, s.State)
		assert.EqualValues(t, 1000, s.BudgetUSD)

		out := joined(r)
		assert.Contains(t, out, "0.012", "BTC quantity preview")
		assert.Contains(t, out, "0.16", "ETH quantity preview")
		assert.Contains(t, out, "interval")
	})
}

func TestIntervalStep(t *testing.T) {
	start := []string{"alpha", "BTC - 60\nETH - 40", "1000"}

	t.Run("rejects malformed interval", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, append(start, "4x")...)
		assert.Equal(t, intake.StateInterval, s.State)
		assert.Contains(t, joined(r), "Invalid interval")
	})

	t.Run("rejects zero interval", func(t *testing.T) {
		m, _ := setup(t)
		s, _ := walk(t, m, append(start, "0h")...)
		assert.Equal(t, intake.StateInterval, s.State)
	})

	t.Run("accepts, previews runs and asks confirmation", func(t *testing.T) {
		m, _ := setup(t)
		s, r := walk(t, m, append(start, "4H")...)

		assert.Equal(t, intake.StateConfirmation, s.State)
		assert.Equal(t, "4h", s.Interval, "interval canonicalized to lower case")
		assert.True(t, r.AskConfirm)

		out := joined(r)
		assert.Contains(t, out, "next 5 SIP runs")
		assert.Contains(t, out, "Review your SIP config")
		assert.Contains(t, out, "60% BTC + 40% ETH")
		assert.Contains(t, out, "1000$")
	})
}

func TestConfirmationStep(t *testing.T) {
	full := []string{"alpha", "BTC - 60\nETH - 40", "1000", "4h"}

	t.Run("free text while awaiting confirmation re-prompts", func(t *testing.T) {
		m, _ := setup(t)
		s, _ := walk(t, m, full...)

		r := m.HandleMessage(context.Background(), s, "yes please")
		assert.Equal(t, intake.StateConfirmation, s.State)
		assert.True(t, r.AskConfirm)
		assert.Contains(t, joined(r), "buttons")
	})

	t.Run("accept persists the plan", func(t *testing.T) {
		m, plans := setup(t)
		s, _ := walk(t, m, full...)

		r, err := m.HandleConfirmation(s, true)
		require.NoError(t, err)
		assert.Equal(t, intake.StateDone, s.State)
		assert.Contains(t, joined(r), "added successfully")

		saved, err := plans.GetByLabel("alpha")
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, map[string]int{"BTC": 60, "ETH": 40}, saved.Composition)
		assert.Equal(t, "4h", saved.Interval)
		assert.True(t, saved.BudgetUSD.Equal(decimal.NewFromInt(1000)))
		assert.True(t, saved.Enabled)
	})

	t.Run("reject discards the session", func(t *testing.T) {
		m, plans := setup(t)
		s, _ := walk(t, m, full...)

		r, err := m.HandleConfirmation(s, false)
		require.NoError(t, err)
		assert.Equal(t, intake.StateCancelled, s.State)
		assert.True(t, s.Terminal())
		assert.Contains(t, joined(r), "cancelled")

		saved, err := plans.GetByLabel("alpha")
		require.NoError(t, err)
		assert.Nil(t, saved)
	})

	t.Run("duplicate label at commit is friendly, not fatal", func(t *testing.T) {
		m, plans := setup(t)
		s, _ := walk(t, m, full...)

		// Another writer takes the label between the label step and
		// the commit
		require.NoError(t, plans.Add(domain.Plan{
			Label: "alpha", Composition: map[string]int{"BTC": 100},
			Interval: "1d", BudgetUSD: decimal.NewFromInt(10), Enabled: true,
		}))

		r, err := m.HandleConfirmation(s, true)
		require.NoError(t, err, "duplicate label is reported, not raised")
		assert.Equal(t, intake.StateDone, s.State)
		assert.Contains(t, joined(r), "already exists")
	})

	t.Run("other persistence failure clears session and re-raises", func(t *testing.T) {
		db, err := database.New(database.Config{Path: ":memory:"})
		require.NoError(t, err)
		plans := plan.NewRepository(db.Conn(), zerolog.Nop())
		m := intake.New(plans, defaultResolver(), zerolog.Nop())

		s, _ := walk(t, m, full...)
		_ = db.Close() // break the store under the machine

		r, err := m.HandleConfirmation(s, true)
		require.Error(t, err, "unexpected persistence errors surface to the caller")
		assert.Equal(t, intake.StateDone, s.State)
		assert.Contains(t, joined(r), "Unexpected error")
	})
}

func TestCancel(t *testing.T) {
	m, plans := setup(t)

	// Cancel is accepted in any non-terminal state
	for _, inputs := range [][]string{
		{},
		{"alpha"},
		{"alpha", "BTC - 60\nETH - 40"},
		{"alpha", "BTC - 60\nETH - 40", "1000"},
		{"alpha", "BTC - 60\nETH - 40", "1000", "4h"},
	} {
		s, _ := walk(t, m, inputs...)
		r := m.Cancel(s)
		assert.Equal(t, intake.StateCancelled, s.State)
		assert.Contains(t, joined(r), "cancelled")
	}

	saved, err := plans.List()
	require.NoError(t, err)
	assert.Empty(t, saved, "cancelled sessions never persist anything")
}

func TestScheduleAnchoringInPreview(t *testing.T) {
	// The preview and the executor must agree on the grid: both anchor at
	// the most recent UTC midnight. Walking to the interval step twice a
	// second apart yields the same absolute timestamps.
	m, _ := setup(t)

	s1, r1 := walk(t, m, "alpha", "BTC - 60\nETH - 40", "1000", "4h")
	require.Equal(t, intake.StateConfirmation, s1.State)

	m2, _ := setup(t)
	time.Sleep(10 * time.Millisecond)
	_, r2 := walk(t, m2, "alpha", "BTC - 60\nETH - 40", "1000", "4h")

	// Extract the first preview line from both replies; absent a grid
	// boundary crossing mid-test they are identical
	first := func(r intake.Reply) string {
		for _, msg := range r.Messages {
			if strings.Contains(msg, "1. ") {
				start := strings.Index(msg, "1. ")
				return msg[start : start+22]
			}
		}
		return ""
	}
	assert.NotEmpty(t, first(r1))
	assert.Equal(t, first(r1), first(r2))
}
