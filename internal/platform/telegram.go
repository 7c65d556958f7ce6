package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/cfd24/hoyolab-auto/internal/config"
)

// Telegram sends notifications to one chat through a bot and, when
// listening, answers commands sent from that chat.
type Telegram struct {
	id     string
	chatID int64
	bot    *bot.Bot
	logger *slog.Logger
}

var _ Listener = (*Telegram)(nil)

// NewTelegram creates the bot client without contacting Telegram; the token
// is checked by Connect.
func NewTelegram(cfg config.PlatformConfig, logger *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token cannot be empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := platformID(cfg, strconv.FormatInt(cfg.ChatID, 10))
	log := logger.With("component", "telegram", "platform", id)

	opts = append([]bot.Option{
		bot.WithSkipGetMe(),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			log.DebugContext(ctx, "Ignoring update", "update_id", update.ID)
		}),
		bot.WithErrorsHandler(func(err error) {
			log.Warn("Telegram polling error", "error", err)
		}),
	}, opts...)
	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		id:     id,
		chatID: cfg.ChatID,
		bot:    b,
		logger: log,
	}, nil
}

// ID implements bootstrap.Session.
func (t *Telegram) ID() string { return t.id }

// Type implements Platform.
func (t *Telegram) Type() string { return TypeTelegram }

// Connect verifies the token with getMe.
func (t *Telegram) Connect(ctx context.Context) error {
	me, err := t.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe failed: %w", err)
	}
	t.logger.Info("Telegram bot connected", "username", me.Username, "bot_id", me.ID)
	return nil
}

// Send posts msg to the configured chat.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   msg.Text(),
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	t.logger.Debug("Telegram message sent", "title", msg.Title)
	return nil
}

// Listen registers cmds plus /help and polls for updates until ctx is done.
// Only the configured chat is answered.
func (t *Telegram) Listen(ctx context.Context, cmds []Command) error {
	cmds = withHelp(cmds)
	for _, cmd := range cmds {
		t.bot.RegisterHandler(bot.HandlerTypeMessageText, cmd.Name, bot.MatchTypeCommandStartOnly,
			t.commandHandler(cmd), t.configuredChatOnly)
		t.logger.Debug("Registered command", "command", cmd.Name)
	}

	t.logger.Info("Listening for commands", "count", len(cmds))
	t.bot.Start(ctx)
	t.logger.Info("Stopped listening for commands")
	return nil
}

func (t *Telegram) configuredChatOnly(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		if update.Message.Chat.ID != t.chatID {
			t.logger.WarnContext(ctx, "Ignoring command from unknown chat", "chat_id", update.Message.Chat.ID)
			return
		}
		next(ctx, b, update)
	}
}

func (t *Telegram) commandHandler(cmd Command) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		_, args, _ := ParseCommand(update.Message.Text)
		log := t.logger.With("command", cmd.Name)
		log.InfoContext(ctx, "Handling command", "args", len(args))

		reply, err := runCommand(ctx, cmd, args)
		if err != nil {
			log.ErrorContext(ctx, "Command failed", "error", err)
		}

		_, err = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: update.Message.Chat.ID, Text: reply})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send command reply", "error", err)
		}
	}
}
