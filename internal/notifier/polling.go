package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// CommandHandler answers a bot command such as "list" with its arguments.
type CommandHandler func(command string, args []string) string

// Listen long-polls for commands from the configured chat and replies with the
// handler's answer. Blocks until ctx is cancelled.
func (t *TelegramNotifier) Listen(ctx context.Context, handler CommandHandler) {
	logger := log.With().Str("component", "telegram").Logger()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.bot.GetUpdatesChan(cfg)
	defer t.bot.StopReceivingUpdates()

	logger.Info().Int64("chat_id", t.chatID).Msg("listening for commands")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("command polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			reply, ok := t.dispatch(upd, handler)
			if !ok || reply == "" {
				continue
			}
			if err := t.Send(ctx, reply); err != nil {
				logger.Warn().Err(err).Msg("reply failed")
			}
		}
	}
}

// dispatch runs the handler for a command from the configured chat.
func (t *TelegramNotifier) dispatch(upd tgbotapi.Update, handler CommandHandler) (string, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
		return "", false
	}
	log.Info().Str("component", "telegram").Str("command", msg.Command()).Msg("command received")
	return handler(msg.Command(), strings.Fields(msg.CommandArguments())), true
}
