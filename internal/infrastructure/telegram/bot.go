package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"

	"InfoDigest/internal/usecase"
)

// DeliveryFailedText is sent as plain text when a formatted reply is refused.
const DeliveryFailedText = "⚠️ Sorry, I could not deliver this reply. Please try again later."

const (
	pollTimeoutSeconds = 60
	typingInterval     = 4 * time.Second
)

// Sender is the part of the Bot API used to answer users.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource delivers incoming updates.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// MessageHandler produces exactly one reply per message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) usecase.Reply
}

// Bot long-polls Telegram and hands text messages to the pipeline.
type Bot struct {
	sender  Sender
	source  UpdateSource
	handler MessageHandler
	sem     *semaphore.Weighted
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewBot connects to the Bot API with token.
func NewBot(token string, handler MessageHandler, maxConcurrent int, logger *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	if logger != nil {
		logger.Info("telegram bot authorized", "username", api.Self.UserName)
	}
	return NewBotWithAPI(api, api, handler, maxConcurrent, logger), nil
}

// NewBotWithAPI wires explicit sender and update source implementations.
func NewBotWithAPI(sender Sender, source UpdateSource, handler MessageHandler, maxConcurrent int, logger *slog.Logger) *Bot {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &Bot{
		sender:  sender,
		source:  source,
		handler: handler,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		logger:  logger,
	}
}

// Run polls for updates until ctx is done, then waits for in-flight
// messages to be answered.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.source.GetUpdatesChan(cfg)

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.source.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.dispatch(ctx, update); err != nil {
				b.source.StopReceivingUpdates()
				return nil
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return nil
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.send(msg.Chat.ID, msg.MessageID, HelpText)
			return nil
		}
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		b.handle(ctx, msg)
	}()
	return nil
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	stopTyping := b.keepTyping(msg.Chat.ID)
	reply := b.handler.HandleMessage(ctx, userID, msg.Text)
	stopTyping()

	b.debug("reply ready", "chat_id", msg.Chat.ID, "kind", reply.Kind, "request_id", reply.RequestID)
	b.send(msg.Chat.ID, msg.MessageID, FormatReply(reply))
}

// keepTyping refreshes the typing indicator until the returned func is called.
func (b *Bot) keepTyping(chatID int64) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if _, err := b.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
				b.debug("typing action failed", "chat_id", chatID, "error", err)
			}
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// send delivers text as HTML. When Telegram refuses it, a short plain
// notice goes out instead so the user is never left without an answer.
func (b *Bot) send(chatID int64, replyTo int, text string) {
	err := b.deliver(chatID, replyTo, text, tgbotapi.ModeHTML)
	if err == nil {
		return
	}
	if b.logger != nil {
		b.logger.Error("send telegram message", "chat_id", chatID, "error", err)
	}
	if err := b.deliver(chatID, replyTo, DeliveryFailedText, ""); err != nil && b.logger != nil {
		b.logger.Error("send fallback message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) deliver(chatID int64, replyTo int, text, parseMode string) error {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = parseMode
	out.DisableWebPagePreview = true
	out.ReplyToMessageID = replyTo
	_, err := b.sender.Send(out)
	return err
}

func (b *Bot) debug(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
