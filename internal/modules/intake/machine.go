package intake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/dcabot/hypersip/internal/domain"
	"github.com/dcabot/hypersip/internal/modules/allocation"
	"github.com/dcabot/hypersip/internal/modules/plan"
	"github.com/dcabot/hypersip/internal/modules/schedule"
)

// previewRuns is how many upcoming grid timestamps the interval step shows.
const previewRuns = 5

// PlanStore is the slice of the plan repository the machine needs.
type PlanStore interface {
	GetByLabel(label string) (*domain.Plan, error)
	Add(p domain.Plan) error
}

// PairResolver resolves an operator-facing coin symbol to a priced venue
// pair for the configured network. Implemented by the venue client;
// faked in tests.
type PairResolver interface {
	ResolvePair(ctx context.Context, coin string) (domain.PricedPair, error)
}

// Machine is the stateless intake service. All per-conversation state is in
// the Session the caller passes in.
type Machine struct {
	plans    PlanStore
	resolver PairResolver
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an intake machine.
func New(plans PlanStore, resolver PairResolver, log zerolog.Logger) *Machine {
	return &Machine{
		plans:    plans,
		resolver: resolver,
		log:      log.With().Str("service", "intake").Logger(),
		now:      time.Now,
	}
}

// Begin starts a fresh intake session for a chat.
func (m *Machine) Begin(chatID int64) (*Session, Reply) {
	s := &Session{ChatID: chatID, State: StateLabel}
	return s, reply("📝 What would you like to name this SIP configuration?")
}

// HandleMessage feeds one free-text message into the session's current
// state. Validation failures and collaborator errors re-prompt the same
// state; they never escape the handler.
func (m *Machine) HandleMessage(ctx context.Context, s *Session, text string) Reply {
	switch s.State {
	case StateLabel:
		return m.handleLabel(s, text)
	case StateComposition:
		return m.handleComposition(ctx, s, text)
	case StateBudget:
		return m.handleBudget(s, text)
	case StateInterval:
		return m.handleInterval(s, text)
	case StateConfirmation:
		return Reply{
			Messages:   []string{"⚠️ Please use the buttons to confirm or cancel."},
			AskConfirm: true,
		}
	default:
		return reply("Nothing in progress. Use /add_config to create a SIP configuration.")
	}
}

// Cancel unconditionally discards the session. Accepted in any non-terminal
// state.
func (m *Machine) Cancel(s *Session) Reply {
	s.State = StateCancelled
	m.log.Info().Int64("chat", s.ChatID).Msg("Intake cancelled")
	return reply("🚫 SIP config creation cancelled.")
}

// handleLabel validates the plan name: non-empty, at most 50 characters and
// not already taken (case-sensitive exact match).
func (m *Machine) handleLabel(s *Session, text string) Reply {
	label := strings.TrimSpace(text)
	if label == "" || utf8.RuneCountInString(label) > plan.MaxLabelLength {
		return reply("❌ Name must be between 1 and 50 characters.")
	}

	existing, err := m.plans.GetByLabel(label)
	if err != nil {
		m.log.Error().Err(err).Msg("Label lookup failed")
		return reply("❌ Could not check the name right now. Please try again.")
	}
	if existing != nil {
		return reply(fmt.Sprintf("❌ SIP config with name '%s' already exists.", label))
	}

	s.Label = label
	s.State = StateComposition
	return reply("📦 Send the coins composition:" +
		"\nMake sure it's adding to 100" +
		"\n\nExamples of valid compositions:" +
		"\n<code>ETH - 40\nBTC - 60</code>\n" +
		"\n<code>BTC - 40\nETH - 40\nSOL - 20</code>")
}

// handleComposition parses "SYM - N" lines, checks the weights and resolves
// a priced pair per distinct symbol. Any failure keeps the session in the
// composition state with nothing stored.
func (m *Machine) handleComposition(ctx context.Context, s *Session, text string) Reply {
	composition, err := parseComposition(text)
	if err != nil {
		return reply(fmt.Sprintf("❌ Invalid composition. Please follow the format precisely."+
			"\n<b>Error</b>: %v", err))
	}

	coins := sortedKeys(composition)
	pairs := make([]domain.PricedPair, 0, len(coins))
	for _, coin := range coins {
		pair, err := m.resolver.ResolvePair(ctx, coin)
		if err != nil {
			m.log.Warn().Err(err).Str("coin", coin).Msg("Pair resolution failed")
			return reply(fmt.Sprintf("❌ Invalid composition. Please follow the format precisely."+
				"\n<b>Error</b>: %v", err))
		}
		pairs = append(pairs, pair)
	}

	s.Composition = composition
	s.Pairs = pairs
	s.State = StateBudget

	var lines []string
	for _, p := range pairs {
		lines = append(lines, fmt.Sprintf("<b>%s</b> ($%s)", p.Pair, p.Price.StringFixed(2)))
	}
	return reply(
		"✅ Coins: \n"+strings.Join(lines, "\n"),
		"💰 How much would you like to invest per SIP?\n"+
			"\nExample: <code>1000$</code> or <code>500$</code>",
	)
}

// handleBudget parses the integer USD amount and immediately sizes the
// stored composition against it. Every violating asset is reported in one
// message and the session stays here until the budget is raised.
func (m *Machine) handleBudget(s *Session, text string) Reply {
	raw := strings.TrimSpace(text)
	raw = strings.TrimSuffix(raw, "$")
	budget, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || budget <= 0 {
		return reply("❌ Invalid number. Please enter a whole USD amount, without . or ,")
	}

	sizings, err := allocation.Size(s.Composition, s.Pairs, decimal.NewFromInt(budget))
	if err != nil {
		// Prices were resolved in the previous step, so this is
		// unexpected; still recoverable by re-entering a budget
		m.log.Error().Err(err).Msg("Sizing failed")
		return reply("❌ Could not compute the coin breakup. Please try again.")
	}

	violations := allocation.CheckViolations(sizings)
	breakup := formatBreakup(sizings, violations)

	if len(violations) > 0 {
		var problems []string
		for _, v := range violations {
			problems = append(problems, fmt.Sprintf("<b>%s</b>: %s", v.Coin, v.Reason))
		}
		return reply(
			"🪙 Coins Breakup: \n"+breakup,
			"❌ This amount is too small for the composition:\n"+
				strings.Join(problems, "\n")+
				"\n\nPlease try again with a larger SIP amount.",
		)
	}

	s.BudgetUSD = budget
	s.State = StateInterval
	return reply(
		"🪙 Coins Breakup: \n"+breakup+"\n\nEst. coins will be bought every SIP",
		"⏳ Enter the interval for this SIP:"+
			"\nExamples,"+
			"\n1d - everyday"+
			"\n4h - every 4 hours"+
			"\n30m - every 30 minutes"+
			"\n\nNote: All intervals are computed in UTC, and start at 00:00.",
	)
}

// handleInterval parses the interval, previews the next grid timestamps and
// presents the full summary for final confirmation.
func (m *Machine) handleInterval(s *Session, text string) Reply {
	interval := strings.TrimSpace(text)
	d, err := schedule.ParseInterval(interval)
	if err != nil {
		return reply(fmt.Sprintf("❌ Invalid interval. Please follow the format precisely."+
			"\n<b>Error</b>: %v", err))
	}

	now := m.now().UTC()
	runs, err := schedule.NextRuns(d, previewRuns, now)
	if err != nil {
		return reply(fmt.Sprintf("❌ Invalid interval. Please follow the format precisely."+
			"\n<b>Error</b>: %v", err))
	}

	s.Interval = strings.ToLower(interval)
	s.State = StateConfirmation

	var runLines []string
	for i, run := range runs {
		runLines = append(runLines, fmt.Sprintf("%d. %s (%s)",
			i+1, run.Format("2006-01-02 15:04:05"), humanize.RelTime(run, now, "ago", "from now")))
	}

	sizings, sizeErr := allocation.Size(s.Composition, s.Pairs, decimal.NewFromInt(s.BudgetUSD))
	breakup := ""
	if sizeErr == nil {
		breakup = formatBreakup(sizings, nil)
	}

	var compParts []string
	for _, coin := range sortedKeys(s.Composition) {
		compParts = append(compParts, fmt.Sprintf("%d%% %s", s.Composition[coin], coin))
	}

	summary := fmt.Sprintf("Review your SIP config,\n\n"+
		"📛 <b>Name</b>: %s\n"+
		"🛍 <b>Composition</b>: %s\n"+
		"🧮 <b>Coins</b>: \n%s\n\n"+
		"🕒 <b>Interval</b>: %s\n"+
		"💰 <b>Amount</b>: %d$\n"+
		"⏰ <b>Next Immediate Run</b>: <b>%s UTC</b> (%s)",
		s.Label,
		strings.Join(compParts, " + "),
		breakup,
		s.Interval,
		s.BudgetUSD,
		runs[0].Format("2006-01-02 15:04:05"),
		humanize.RelTime(runs[0], now, "ago", "from now"))

	return Reply{
		Messages: []string{
			fmt.Sprintf("✅ <b>Interval</b>: %s\n\n"+
				"🕒 Based on the interval you provided, here are the next %d SIP runs:\n%s",
				s.Interval, previewRuns, strings.Join(runLines, "\n")),
			summary,
			"⚠️ This is the final confirmation. The bot will start accumulating coins without awaiting any confirmation." +
				"\n\nSchedule this SIP now?",
		},
		AskConfirm: true,
	}
}

// HandleConfirmation resolves the final accept/reject. A duplicate label at
// commit time (lost race against another writer) is reported as a friendly
// message, not a fault. Any other persistence failure clears the session
// and is returned to the caller for operator-level logging.
func (m *Machine) HandleConfirmation(s *Session, accept bool) (Reply, error) {
	if s.State != StateConfirmation {
		return reply("Nothing awaiting confirmation."), nil
	}

	if !accept {
		s.State = StateCancelled
		return reply("🚫 SIP config creation cancelled."), nil
	}

	err := m.plans.Add(domain.Plan{
		Label:       s.Label,
		Composition: s.Composition,
		Interval:    s.Interval,
		BudgetUSD:   decimal.NewFromInt(s.BudgetUSD),
		Enabled:     true,
		CreatedAt:   m.now().UTC(),
	})
	switch {
	case err == nil:
		s.State = StateDone
		m.log.Info().Str("label", s.Label).Msg("Plan confirmed and saved")
		return reply("✅ SIP config added successfully."), nil
	case errors.Is(err, plan.ErrDuplicateLabel):
		s.State = StateDone
		return reply(fmt.Sprintf("⚠️ SIP config with name '%s' already exists.", s.Label)), nil
	default:
		s.State = StateDone
		return reply("❌ Unexpected error occurred."), err
	}
}

// parseComposition parses "SYM - N" lines into a weight map and validates
// the weights: integers in [0,100] summing to exactly 100.
func parseComposition(text string) (map[string]int, error) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, errors.New("empty composition")
	}

	composition := make(map[string]int, len(lines))
	for _, line := range lines {
		coin, amountStr, found := strings.Cut(line, "-")
		if !found {
			return nil, fmt.Errorf("line %q is missing the '-' separator", line)
		}
		coin = strings.TrimSpace(coin)
		if coin == "" {
			return nil, fmt.Errorf("line %q is missing the coin symbol", line)
		}
		amount, err := strconv.Atoi(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, fmt.Errorf("weight for %s must be a whole number", coin)
		}
		if amount < 0 {
			return nil, errors.New("amount cannot be negative")
		}
		if amount > 100 {
			return nil, errors.New("amount cannot be greater than 100")
		}
		composition[coin] = amount
	}

	total := 0
	for _, w := range composition {
		total += w
	}
	if total != 100 {
		return nil, fmt.Errorf("total amount must be 100, got %d", total)
	}
	return composition, nil
}

// formatBreakup renders the per-coin sizing lines, flagging violating legs.
func formatBreakup(sizings map[string]allocation.Sizing, violations []allocation.Violation) string {
	violating := make(map[string]bool, len(violations))
	for _, v := range violations {
		violating[v.Coin] = true
	}

	var lines []string
	for _, coin := range sortedKeys(sizings) {
		s := sizings[coin]
		mark := "✅"
		if violating[coin] {
			mark = "❌"
		}
		lines = append(lines, fmt.Sprintf("<code>%s</code> <b>%s</b> (worth $%s) %s",
			s.Quantity, coin, s.NotionalUSD.StringFixed(2), mark))
	}
	return strings.Join(lines, "\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
