package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Verifier proves the messaging credentials against the live API: the bot
// token authenticates (getMe) and the operator chat is reachable (getChat).
// It backs the startup validator's chat check.
type Verifier struct {
	api *telego.Bot
}

// NewVerifier creates a verifier over an existing Telegram API client.
func NewVerifier(api *telego.Bot) *Verifier {
	return &Verifier{api: api}
}

// VerifyOperator implements validation.ChatAPI.
func (v *Verifier) VerifyOperator(ctx context.Context, userID int64) error {
	me, err := v.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot token rejected by the API: %w", err)
	}

	if _, err := v.api.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(userID)}); err != nil {
		return fmt.Errorf("operator chat %d not reachable by @%s (has the operator started the bot?): %w",
			userID, me.Username, err)
	}
	return nil
}
