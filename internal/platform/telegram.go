package platform

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/antufev/gracebot/internal/category"
	"github.com/antufev/gracebot/internal/domain"
)

const callbackPrefix = "act"

// Telegram delivers notifications as bot messages. Category actions
// become inline keyboard buttons and callback queries feed the action
// listener. Permission is granted once a deliverable chat is known,
// either from config or after the user starts the bot.
type Telegram struct {
	api        *tgbotapi.BotAPI
	categories *category.Registry

	mu       sync.Mutex
	chatID   int64
	channel  Channel
	listener ActionListener
}

func NewTelegram(token string, chatID int64, categories *category.Registry) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	return &Telegram{
		api:        api,
		categories: categories,
		chatID:     chatID,
		channel:    DefaultChannel(),
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) IsPhysical() bool { return true }

func (t *Telegram) SupportsChannels() bool { return true }

func (t *Telegram) ConfigureChannel(ch Channel) error {
	if ch.Name == "" {
		return fmt.Errorf("channel name cannot be empty")
	}
	t.mu.Lock()
	t.channel = ch
	t.mu.Unlock()
	return nil
}

func (t *Telegram) CheckPermission(ctx context.Context) (domain.PermissionStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID != 0 {
		return domain.PermissionGranted, nil
	}
	return domain.PermissionUndetermined, nil
}

// RequestPermission resolves to granted as soon as a chat is known.
// There is no dialog to re-show: before the user starts the bot the
// status stays undetermined, so repeated calls are no-ops.
func (t *Telegram) RequestPermission(ctx context.Context) (domain.PermissionStatus, error) {
	return t.CheckPermission(ctx)
}

func (t *Telegram) Deliver(n domain.Notification) error {
	t.mu.Lock()
	chatID := t.chatID
	channel := t.channel
	t.mu.Unlock()

	if chatID == 0 {
		return fmt.Errorf("no chat to deliver to")
	}

	text := fmt.Sprintf("🔔 <b>%s</b>\n\n%s", n.Title, n.Body)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableNotification = channel.Importance <= ImportanceLow

	if kb := t.actionKeyboard(n); kb != nil {
		msg.ReplyMarkup = *kb
	}

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// actionKeyboard builds the inline keyboard for the notification's
// category. An unregistered category means no buttons, not an error.
func (t *Telegram) actionKeyboard(n domain.Notification) *tgbotapi.InlineKeyboardMarkup {
	if n.CategoryID == "" || t.categories == nil {
		return nil
	}
	cat, ok := t.categories.Get(n.CategoryID)
	if !ok || len(cat.Actions) == 0 {
		return nil
	}

	var buttons []tgbotapi.InlineKeyboardButton
	for _, a := range cat.Actions {
		data := fmt.Sprintf("%s:%s:%s", callbackPrefix, a.Identifier, n.ID)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, data))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	return &kb
}

func (t *Telegram) AttachActionListener(l ActionListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// Start polls for updates until the context is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

func (t *Telegram) Stop() {
	t.api.StopReceivingUpdates()
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		t.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		t.handleCallback(update.CallbackQuery)
	}
}

func (t *Telegram) handleMessage(msg *tgbotapi.Message) {
	// The user starting the bot is what grants delivery permission.
	if msg.IsCommand() && msg.Command() == "start" {
		t.mu.Lock()
		t.chatID = msg.Chat.ID
		t.mu.Unlock()
		log.Printf("Delivery chat registered: %d", msg.Chat.ID)

		reply := tgbotapi.NewMessage(msg.Chat.ID, "✅ Reminders will be delivered here")
		if _, err := t.api.Send(reply); err != nil {
			log.Printf("Error sending start reply: %v", err)
		}
	}
}

func (t *Telegram) handleCallback(callback *tgbotapi.CallbackQuery) {
	// Acknowledge first so the button stops spinning even if the
	// handler fails.
	if _, err := t.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	parts := strings.SplitN(callback.Data, ":", 3)
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return
	}

	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()

	if listener == nil {
		return
	}

	payload := map[string]string{"notification_id": parts[2]}
	listener(parts[1], payload)
}
