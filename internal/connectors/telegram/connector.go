// Package telegram connects the chat handler to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/wallet_chatbot/internal/chatbot"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

const maxMediaBytes = 10 << 20

// EventHandler consumes normalised chat events.
type EventHandler interface {
	Handle(ctx context.Context, ev chatbot.Event) error
	Commands() []chatbot.CommandInfo
}

// Connector represents the Telegram connector
type Connector struct {
	bot     *bot.Bot
	handler EventHandler
	queues  *chatQueues
	http    *http.Client
	logger  logger.Logger
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging
	Workers  int    // Chats handled concurrently; one chat is always handled in arrival order
	Logger   logger.Logger
}

var (
	_ chatbot.Messenger  = (*Connector)(nil)
	_ flows.MediaFetcher = (*Connector)(nil)
)

// NewConnector creates a new Telegram connector. Updates are ignored until
// Start is called with a handler.
func NewConnector(config Config) (*Connector, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	connector := &Connector{
		queues: newChatQueues(config.Workers),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: config.Logger.WithFields(logger.StringField("component", "telegram")),
	}

	opts := connector.botOptions()
	if config.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	connector.bot = b
	connector.logger.Info("Telegram bot initialized")

	return connector, nil
}

// botOptions makes the library hand updates to handleUpdate one at a time
// from a single goroutine, so the order handleUpdate sees is the order
// Telegram delivered.
func (c *Connector) botOptions() []bot.Option {
	return []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
		bot.WithNotAsyncHandlers(),
		bot.WithWorkers(1),
	}
}

// Start registers the command menu and polls for updates until ctx is
// cancelled. It returns once every accepted update has been handled.
func (c *Connector) Start(ctx context.Context, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	c.handler = handler

	if err := c.setCommands(ctx, handler.Commands()); err != nil {
		c.logger.Warn("Failed to register bot commands", logger.ErrorField(err))
	}

	c.logger.Info("Starting Telegram bot polling")
	c.bot.Start(ctx)
	c.queues.wait()
	c.logger.Info("Telegram bot polling stopped")
	return nil
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}

func (c *Connector) setCommands(ctx context.Context, cmds []chatbot.CommandInfo) error {
	params := &bot.SetMyCommandsParams{}
	for _, cmd := range cmds {
		params.Commands = append(params.Commands, models.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Description,
		})
	}
	_, err := c.bot.SetMyCommands(ctx, params)
	return err
}

// handleUpdate queues an incoming Telegram update behind earlier updates
// of the same chat.
func (c *Connector) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	handler := c.handler
	if handler == nil {
		return
	}
	ev, ok := toEvent(update)
	if !ok {
		c.logger.Debug("Skipping unsupported update", logger.Int64Field("update_id", update.ID))
		return
	}

	c.queues.enqueue(ev.ChatID, func() {
		if ctx.Err() != nil {
			c.logger.Debug("Dropping update after shutdown", logger.ChatField(ev.ChatID))
			return
		}
		if err := handler.Handle(ctx, ev); err != nil {
			c.logger.Error("Failed to handle update", logger.ChatField(ev.ChatID), logger.ErrorField(err))
		}
	})
}

// toEvent converts a Telegram update into a chat event. Messages from
// bots and update types the bot does not use are skipped.
func toEvent(update *models.Update) (chatbot.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		ev := chatbot.Event{
			ChatID:       strconv.FormatInt(cq.From.ID, 10),
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		switch {
		case cq.Message.Message != nil:
			ev.ChatID = strconv.FormatInt(cq.Message.Message.Chat.ID, 10)
			ev.MessageID = cq.Message.Message.ID
		case cq.Message.InaccessibleMessage != nil:
			ev.ChatID = strconv.FormatInt(cq.Message.InaccessibleMessage.Chat.ID, 10)
			ev.MessageID = cq.Message.InaccessibleMessage.MessageID
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || (msg.From != nil && msg.From.IsBot) {
		return chatbot.Event{}, false
	}
	ev := chatbot.Event{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: msg.ID,
		Text:      msg.Text,
	}
	switch {
	case len(msg.Photo) > 0:
		// Telegram lists sizes smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Media = &flows.Media{Ref: largest.FileID, MimeType: "image/jpeg"}
		ev.Text = msg.Caption
	case msg.Document != nil:
		ev.Media = &flows.Media{Ref: msg.Document.FileID, MimeType: msg.Document.MimeType}
		ev.Text = msg.Caption
	}
	if ev.Text == "" && ev.Media == nil {
		return chatbot.Event{}, false
	}
	return ev, true
}

// Send posts reply to chatID with an inline keyboard when it has one.
func (c *Connector) Send(ctx context.Context, chatID string, reply flows.Reply) (int, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}
	params := &bot.SendMessageParams{
		ChatID:             id,
		Text:               reply.Text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	}
	if len(reply.Keyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard(reply.Keyboard)
	}
	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

// ClearKeyboard removes the inline keyboard from a sent message.
func (c *Connector) ClearKeyboard(ctx context.Context, chatID string, messageID int) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = c.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      id,
		MessageID:   messageID,
		ReplyMarkup: models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}},
	})
	return err
}

// AnswerCallback stops the client's loading indicator on a pressed button.
func (c *Connector) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}

// DeleteMessage removes a message from the chat.
func (c *Connector) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: id, MessageID: messageID})
	return err
}

// FetchMedia downloads an uploaded file by its file id.
func (c *Connector) FetchMedia(ctx context.Context, ref string) ([]byte, error) {
	file, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: ref})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("file larger than %d bytes", maxMediaBytes)
	}
	return data, nil
}

func inlineKeyboard(rows [][]flows.Button) models.InlineKeyboardMarkup {
	markup := models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Label, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}
