// Package telegram adapts the intake machine to the Telegram Bot API. It is
// a thin shell: every command and message is routed into the machine, and
// the machine's replies are sent back verbatim. No business rules live here.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog"

	"github.com/dcabot/hypersip/internal/modules/intake"
)

const (
	callbackConfirm = "sip_confirm"
	callbackCancel  = "sip_cancel"
)

// Bot is the single-operator Telegram frontend. Updates from anyone other
// than the configured user are dropped without a reply.
type Bot struct {
	api     *telego.Bot
	machine *intake.Machine
	userID  int64
	log     zerolog.Logger

	// One live intake session per chat. The update loop is sequential,
	// so no locking is needed.
	sessions map[int64]*intake.Session
}

// New creates the bot frontend over an existing Telegram API client.
func New(api *telego.Bot, machine *intake.Machine, userID int64, log zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		machine:  machine,
		userID:   userID,
		log:      log.With().Str("service", "telegram").Logger(),
		sessions: make(map[int64]*intake.Session),
	}
}

// Run polls for updates until the context is cancelled. Handler panics are
// not recovered; a crash here should take the process down visibly.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	b.log.Info().Int64("user_id", b.userID).Msg("Telegram bot polling for updates")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		if update.Message.From == nil || update.Message.From.ID != b.userID {
			b.log.Warn().
				Interface("from", update.Message.From).
				Msg("Dropping message from unauthorized user")
			return
		}
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From.ID != b.userID {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telego.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		b.send(ctx, chatID, intake.Reply{Messages: []string{
			"👋 Welcome!\n\nUse /add_config to create a SIP configuration.\nUse /cancel to abandon one in progress.",
		}})

	case text == "/add_config":
		session, reply := b.machine.Begin(chatID)
		b.sessions[chatID] = session
		b.send(ctx, chatID, reply)

	case text == "/cancel":
		session, ok := b.sessions[chatID]
		if !ok {
			b.send(ctx, chatID, intake.Reply{Messages: []string{"Nothing to cancel."}})
			return
		}
		reply := b.machine.Cancel(session)
		delete(b.sessions, chatID)
		b.send(ctx, chatID, reply)

	default:
		session, ok := b.sessions[chatID]
		if !ok {
			b.send(ctx, chatID, intake.Reply{Messages: []string{
				"Use /add_config to create a SIP configuration.",
			}})
			return
		}
		reply := b.machine.HandleMessage(ctx, session, text)
		if session.Terminal() {
			delete(b.sessions, chatID)
		}
		b.send(ctx, chatID, reply)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	// Acknowledge first so the client stops its spinner even if we bail
	if err := b.api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		b.log.Warn().Err(err).Msg("Failed to answer callback query")
	}

	if query.Message == nil {
		return
	}
	chatID := query.Message.GetChat().ID

	session, ok := b.sessions[chatID]
	if !ok {
		b.send(ctx, chatID, intake.Reply{Messages: []string{"Nothing awaiting confirmation."}})
		return
	}

	accept := query.Data == callbackConfirm
	reply, err := b.machine.HandleConfirmation(session, accept)
	if err != nil {
		b.log.Error().Err(err).Str("label", session.Label).Msg("Plan confirmation failed")
	}
	if session.Terminal() {
		delete(b.sessions, chatID)
	}
	b.send(ctx, chatID, reply)
}

// send delivers the reply messages in order. The confirm/cancel keyboard, if
// requested, is attached to the last message only.
func (b *Bot) send(ctx context.Context, chatID int64, reply intake.Reply) {
	for i, text := range reply.Messages {
		params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
		if reply.AskConfirm && i == len(reply.Messages)-1 {
			params = params.WithReplyMarkup(tu.InlineKeyboard(
				tu.InlineKeyboardRow(
					tu.InlineKeyboardButton("✅ Confirm").WithCallbackData(callbackConfirm),
					tu.InlineKeyboardButton("🚫 Cancel").WithCallbackData(callbackCancel),
				),
			))
		}
		if _, err := b.api.SendMessage(ctx, params); err != nil {
			b.log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send message")
		}
	}
}
