package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/aide/internal/assemble"
	"github.com/user/aide/internal/delivery"
	"github.com/user/aide/internal/orchestrator"
	"github.com/user/aide/internal/types"
)

// SessionPrefix tags delivery keys handled by this adapter.
const SessionPrefix = "telegram:"

// maxTelegramMessage is Telegram's hard per-message character limit.
const maxTelegramMessage = 4096

// outbound splits any text this adapter sends, whatever path it arrived
// by, so scheduled pushes and command replies obey the limit too.
var outbound = assemble.New(maxTelegramMessage)

// Stable user-facing notices for the expected failure modes. The wording
// never carries provider error detail.
const (
	noticeBusy      = "I'm still working on your previous message. One moment."
	noticeThrottled = "You're sending messages a little fast. Give me a second."
	noticeTimeout   = "That took longer than expected and I had to stop waiting. Please try again."
	noticeGeneric   = "Sorry, something went wrong processing your message."
)

// Adapter bridges Telegram to the orchestrator.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	orch    *orchestrator.Orchestrator
	threads types.ThreadStore

	// briefing builds the on-demand briefing text for /briefing.
	briefing func(ctx context.Context) (string, error)
}

// New creates a Telegram adapter.
func New(token string, orch *orchestrator.Orchestrator, threads types.ThreadStore, briefing func(ctx context.Context) (string, error)) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:      bot,
		orch:     orch,
		threads:  threads,
		briefing: briefing,
	}, nil
}

// RegisterDelivery wires this adapter into the delivery registry so
// scheduled pushes can reach Telegram chats.
func (a *Adapter) RegisterDelivery(reg *delivery.Registry) {
	reg.Register(SessionPrefix, func(sessionKey, message string) error {
		chatID, err := strconv.ParseInt(strings.TrimPrefix(sessionKey, SessionPrefix), 10, 64)
		if err != nil {
			return fmt.Errorf("bad delivery key %q: %w", sessionKey, err)
		}
		a.sendResponse(chatID, message)
		return nil
	})
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	userID := types.UserID(strconv.FormatInt(msg.From.ID, 10))

	// Each turn runs in its own goroutine so one user's slow run never
	// blocks the update loop. The guard keeps a user to one active run.
	go func() {
		chunks, err := a.orch.HandleUserTurn(ctx, userID, msg.Text)
		if err != nil {
			a.sendResponse(chatID, noticeFor(err))
			return
		}
		for _, chunk := range chunks {
			a.sendResponse(chatID, chunk)
		}
	}()
}

// noticeFor maps orchestrator failures onto the stable notices. Internal
// detail goes to the log, not the chat.
func noticeFor(err error) string {
	switch {
	case errors.Is(err, types.ErrBusy):
		return noticeBusy
	case errors.Is(err, types.ErrThrottled):
		return noticeThrottled
	case errors.Is(err, types.ErrTimeout):
		slog.Warn("turn timed out", "error", err)
		return noticeTimeout
	default:
		slog.Error("turn failed", "error", err)
		return noticeGeneric
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := types.UserID(strconv.FormatInt(msg.From.ID, 10))

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm your assistant. Ask me about your schedule, email, the weather, or anything else.")

	case "status":
		threadID, ok, err := a.threads.Get(userID)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		if !ok {
			a.sendResponse(chatID, "No conversation yet. Send me a message to start one.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Conversation thread: %s", threadID))

	case "briefing":
		go func() {
			text, err := a.briefing(ctx)
			if err != nil {
				slog.Error("briefing failed", "error", err)
				a.sendResponse(chatID, "Couldn't build the briefing right now.")
				return
			}
			a.sendResponse(chatID, text)
		}()

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status, /briefing")
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range outbound.Assemble(text) {
		a.sendPart(chatID, part)
	}
}

func (a *Adapter) sendPart(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := a.bot.Send(msg); err != nil {
		// Retry without markdown if it fails
		msg.ParseMode = ""
		if _, err := a.bot.Send(msg); err != nil {
			slog.Error("send message failed", "error", err)
		}
	}
}
