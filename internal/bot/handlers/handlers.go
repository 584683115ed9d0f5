package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/config"
	"github.com/hray3182/CalBuddy/internal/format"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/session"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	Location  *time.Location
	WeekStart time.Weekday
	Plans     *config.Catalog
	DevMode   bool
}

type Handlers struct {
	api       Sender
	sessions  *session.Registry
	plans     *config.Catalog
	loc       *time.Location
	weekStart time.Weekday
	devMode   bool
	now       func() time.Time
}

func New(api Sender, sessions *session.Registry, opts Options) *Handlers {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		api:       api,
		sessions:  sessions,
		plans:     opts.Plans,
		loc:       loc,
		weekStart: opts.WeekStart,
		devMode:   opts.DevMode,
		now:       time.Now,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	h.debug("command", "user", msg.From.ID, "command", msg.Command())

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
		return
	case "help":
		h.handleHelp(ctx, msg)
		return
	case "login":
		h.handleLogin(ctx, msg)
		return
	}

	s, ok := h.requireSession(msg)
	if !ok {
		return
	}

	switch msg.Command() {
	case "logout":
		h.handleLogout(ctx, msg, s)
	case "today":
		h.handleToday(ctx, msg, s)
	case "tomorrow":
		h.handleTomorrow(ctx, msg, s)
	case "calendar":
		h.handleCalendar(ctx, msg, s)
	case "day":
		h.handleDay(ctx, msg, s)
	case "event":
		h.handleEvent(ctx, msg, s)
	case "new":
		h.handleNew(ctx, msg, s)
	case "edit":
		h.handleEdit(ctx, msg, s)
	case "delete":
		h.handleDelete(ctx, msg, s)
	case "refresh":
		h.handleRefresh(ctx, msg, s)
	case "search":
		h.handleSearch(ctx, msg, s)
	case "clear":
		h.handleClear(ctx, msg, s)
	case "history":
		h.handleHistory(ctx, msg, s)
	case "plan":
		h.handlePlan(ctx, msg, s)
	case "upgrade":
		h.handleUpgrade(ctx, msg, s)
	case "export":
		h.handleExport(ctx, msg, s)
	case "debug":
		h.handleDebug(ctx, msg, s)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, use /help to see what I can do")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	s, ok := h.requireSession(msg)
	if !ok {
		return
	}
	h.handleChat(ctx, msg.Chat.ID, s, msg.Text)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	// Callback data: "<kind>:<userID>:<args...>"
	parts := strings.SplitN(callback.Data, ":", 4)
	if len(parts) < 3 || callback.Message == nil {
		return
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	if callback.From.ID != userID {
		h.answerCallbackWithAlert(callback.ID, "This button belongs to someone else")
		return
	}

	s, ok := h.sessions.Lookup(userID)
	if !ok || s.Gate.State() != auth.SignedIn {
		h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, "🔒 Please /login first")
		return
	}

	h.debug("callback", "user", userID, "data", callback.Data)

	switch parts[0] {
	case "slot":
		h.handleSlotCallback(ctx, callback, s, parts[2])
	case "event":
		id := ""
		if len(parts) == 4 {
			id = parts[3]
		}
		h.handleEventCallback(ctx, callback, s, parts[2], id)
	case "cal":
		h.handleCalendarCallback(ctx, callback, s, parts[2])
	}
}

// SessionExpired tells a user their session was dropped after a 401.
func (h *Handlers) SessionExpired(telegramID int64) {
	h.sendMessage(telegramID, "🔒 Your CalBuddy session has expired. Send /login <token> to sign in again.")
}

// Notify sends a Markdown text to a user's private chat.
func (h *Handlers) Notify(telegramID int64, text string) error {
	parsed := format.ParseMarkdown(text)
	reply := tgbotapi.NewMessage(telegramID, parsed.Text)
	reply.Entities = parsed.Entities
	_, err := h.api.Send(reply)
	return err
}

func (h *Handlers) requireSession(msg *tgbotapi.Message) (*session.Session, bool) {
	s := h.sessions.Get(msg.From.ID)
	if s.Gate.State() != auth.SignedIn {
		h.sendMessage(msg.Chat.ID, "🔒 Please sign in first with /login <token>")
		return nil, false
	}
	return s, true
}

func (h *Handlers) today() time.Time {
	return h.now().In(h.loc)
}

// errorText turns an operation error into a user-facing line.
func errorText(action string, err error) string {
	var apiErr *api.Error
	switch {
	case api.IsUnauthorized(err):
		return "🔒 Your session has expired. Send /login <token> to sign in again."
	case errors.Is(err, api.ErrNetwork):
		return fmt.Sprintf("❌ Failed to %s: the server could not be reached", action)
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return fmt.Sprintf("❌ Failed to %s: %s", action, apiErr.Message)
	case errors.Is(err, models.ErrEmptyTitle), errors.Is(err, models.ErrMissingStart):
		return fmt.Sprintf("❌ Failed to %s: %v", action, err)
	}
	return fmt.Sprintf("❌ Failed to %s", action)
}

func (h *Handlers) answerCallbackWithAlert(callbackID string, text string) {
	answer := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback with alert: %v", err)
	}
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) editMessageWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, parsed.Text, keyboard)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

// debug logs key/value pairs in dev mode.
func (h *Handlers) debug(event string, kv ...any) {
	if !h.devMode {
		return
	}
	var sb strings.Builder
	sb.WriteString("[debug] ")
	sb.WriteString(event)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	log.Println(sb.String())
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := fmt.Sprintf(`👋 Hi %s!

I'm **CalBuddy**, your calendar assistant.

Sign in with /login <token>, then just tell me what you need, for example:
• "Schedule a 30 minute standup tomorrow morning"
• "What do I have on Friday?"

Use /help to see every command`, msg.From.FirstName)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := "📖 **Commands**\n\n" +
		"**Account**\n" +
		"/login <token> - sign in with your CalBuddy session token\n" +
		"/logout - sign out\n" +
		"/plan - show your subscription\n" +
		"/upgrade <plan> - open a checkout link\n\n" +
		"**Calendar**\n" +
		"/today - today's events\n" +
		"/tomorrow - tomorrow's events\n" +
		"/calendar [YYYY-M] - month overview\n" +
		"/day <YYYY-M-D> - events of one day\n" +
		"/event <id> - event details\n" +
		"/new <title> | <start> | <end> [| priority | type | participants]\n" +
		"/edit <id> <key>=<value>; ...\n" +
		"/delete <id> - delete an event\n" +
		"/refresh - reload events\n" +
		"/export - download an .ics file\n\n" +
		"**Assistant**\n" +
		"/search - last search results\n" +
		"/clear - clear search results and suggestions\n" +
		"/history - recent conversation\n\n" +
		"Times look like `2024-6-15 14:00`, `2024-6-15 2:00 PM` or `tomorrow 9:30`.\n" +
		"💡 Anything that is not a command goes to the assistant."
	h.sendMessage(msg.Chat.ID, text)
}
