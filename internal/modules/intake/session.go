// Package intake drives the multi-step conversational collection of a new
// plan: name, composition, budget, interval, confirmation.
//
// The machine itself is stateless; everything mutable lives in the Session
// value keyed by chat id. Each step validates its input, and on failure the
// session stays exactly where it was: no forward progress, no partial
// mutation.
package intake

import (
	"github.com/dcabot/hypersip/internal/domain"
)

// State is the machine's current position, stored explicitly in the session.
type State int

const (
	// StateLabel - waiting for the plan name
	StateLabel State = iota
	// StateComposition - waiting for the coin/percentage lines
	StateComposition
	// StateBudget - waiting for the per-cycle USD amount
	StateBudget
	// StateInterval - waiting for the interval string
	StateInterval
	// StateConfirmation - waiting for the final accept/reject
	StateConfirmation
	// StateDone - terminal: session completed (plan saved or commit refused)
	StateDone
	// StateCancelled - terminal: session discarded
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateLabel:
		return "label"
	case StateComposition:
		return "composition"
	case StateBudget:
		return "budget"
	case StateInterval:
		return "interval"
	case StateConfirmation:
		return "confirmation"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Session is the per-conversation intake state. Owned by exactly one chat;
// discarded on completion, cancellation or error abandonment.
type Session struct {
	ChatID      int64
	State       State
	Label       string
	Composition map[string]int
	Pairs       []domain.PricedPair
	BudgetUSD   int64
	Interval    string
}

// Terminal reports whether the session is finished and should be dropped.
func (s *Session) Terminal() bool {
	return s.State == StateDone || s.State == StateCancelled
}

// Reply is what a step hands back to the transport: one or more messages to
// send in order, HTML-formatted, optionally requesting the confirm/cancel
// keyboard on the last one.
type Reply struct {
	Messages   []string
	AskConfirm bool
}

func reply(messages ...string) Reply {
	return Reply{Messages: messages}
}
