package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/CalBuddy/internal/calendar"
	"github.com/hray3182/CalBuddy/internal/ical"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/session"
)

func (h *Handlers) handleToday(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	h.sendMessage(msg.Chat.ID, calendar.Agenda("☀️ Today", s.Store.TodayEvents()))
}

func (h *Handlers) handleTomorrow(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	h.sendMessage(msg.Chat.ID, calendar.Agenda("🌙 Tomorrow", s.Store.TomorrowEvents()))
}

func (h *Handlers) handleRefresh(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	res := s.Store.Fetch(ctx)
	if res.Err != nil {
		h.sendMessage(msg.Chat.ID, errorText("refresh events", res.Err))
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🔄 %d event(s) loaded", len(s.Store.Items())))
}

func (h *Handlers) handleCalendar(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	now := h.today()
	year, month := now.Year(), now.Month()
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		var err error
		year, month, err = calendar.ParseMonth(arg)
		if err != nil {
			h.sendMessage(msg.Chat.ID, "Usage: /calendar [YYYY-M]")
			return
		}
	}
	text, keyboard := h.monthView(s, msg.From.ID, year, month)
	h.sendWithKeyboard(msg.Chat.ID, text, keyboard)
}

func (h *Handlers) monthView(s *session.Session, userID int64, year int, month time.Month) (string, tgbotapi.InlineKeyboardMarkup) {
	m := calendar.BuildMonth(year, month, s.Store.CalendarData(), models.KeyOf(h.today()), h.weekStart)
	text := m.Render() + fmt.Sprintf("\n%d event(s) this month", m.Total())

	first := time.Date(year, month, 1, 0, 0, 0, 0, h.loc)
	prev, next := first.AddDate(0, -1, 0), first.AddDate(0, 1, 0)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ "+prev.Format("Jan"), fmt.Sprintf("cal:%d:%s", userID, prev.Format("2006-1"))),
			tgbotapi.NewInlineKeyboardButtonData(next.Format("Jan")+" ▶️", fmt.Sprintf("cal:%d:%s", userID, next.Format("2006-1"))),
		),
	)
	return text, keyboard
}

func (h *Handlers) handleCalendarCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, s *session.Session, arg string) {
	year, month, err := calendar.ParseMonth(arg)
	if err != nil {
		return
	}
	text, keyboard := h.monthView(s, callback.From.ID, year, month)
	h.editMessageWithKeyboard(callback.Message.Chat.ID, callback.Message.MessageID, text, keyboard)
}

func (h *Handlers) handleDay(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	arg := strings.TrimSpace(msg.CommandArguments())
	key := models.KeyOf(h.today())
	if arg != "" {
		var err error
		if key, err = models.ParseDateKey(arg); err != nil {
			h.sendMessage(msg.Chat.ID, "Usage: /day <YYYY-M-D>")
			return
		}
	}
	h.sendMessage(msg.Chat.ID, calendar.BuildDay(key, s.Store.Day(key)).Render())
}

func (h *Handlers) handleEvent(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /event <id>")
		return
	}
	e, ok := s.Store.Event(id)
	if !ok {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ No event with id `%s`", id))
		return
	}

	s.Store.SelectEvent(e)
	s.Store.OpenModal()

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("event:%d:delete:%s", msg.From.ID, e.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Close", fmt.Sprintf("event:%d:close", msg.From.ID)),
		),
	)
	h.sendWithKeyboard(msg.Chat.ID, h.eventDetails(e), keyboard)
}

func (h *Handlers) eventDetails(e models.Event) string {
	start, end := e.StartDate.In(h.loc), e.EndDate.In(h.loc)
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", e.Title)
	fmt.Fprintf(&sb, "🕒 %s, %s - %s\n", start.Format("Mon Jan 2"), start.Format("03:04 PM"), end.Format("03:04 PM"))
	fmt.Fprintf(&sb, "🏷 %s · %s priority\n", e.EventType, e.Priority)
	if len(e.Participants) > 0 {
		fmt.Fprintf(&sb, "👥 %s\n", strings.Join(e.Participants, ", "))
	}
	if e.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", e.Description)
	}
	fmt.Fprintf(&sb, "\n`%s`", e.ID)
	return sb.String()
}

func (h *Handlers) handleEventCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, s *session.Session, action, id string) {
	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID

	switch action {
	case "close":
		s.Store.CloseModal()
		h.editMessageText(chatID, messageID, "✖️ Closed")
	case "delete":
		if id == "" {
			return
		}
		title := id
		if e, ok := s.Store.Event(id); ok {
			title = e.Title
		}
		if res := s.Store.Delete(ctx, id); res.Err != nil {
			h.editMessageText(chatID, messageID, errorText("delete the event", res.Err))
			return
		}
		h.editMessageText(chatID, messageID, fmt.Sprintf("🗑 Deleted **%s**", title))
	}
}

func (h *Handlers) handleNew(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	draft, err := parseNewArgs(msg.CommandArguments(), h.now(), h.loc)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}

	res := s.Store.Create(ctx, draft)
	if res.Err != nil {
		h.sendMessage(msg.Chat.ID, errorText("create the event", res.Err))
		return
	}
	s.IndexLatest(ctx)
	h.sendMessage(msg.Chat.ID, "✅ Created\n\n"+h.eventDetails(*res.Event))
}

func (h *Handlers) handleEdit(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	id, changes, err := parseEditArgs(msg.CommandArguments())
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	e, ok := s.Store.Event(id)
	if !ok {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ No event with id `%s`", id))
		return
	}

	draft := e.Draft()
	if err := applyEdit(&draft, changes, h.now(), h.loc); err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}

	res := s.Store.Update(ctx, id, draft)
	if res.Err != nil {
		h.sendMessage(msg.Chat.ID, errorText("update the event", res.Err))
		return
	}
	s.IndexLatest(ctx)
	h.sendMessage(msg.Chat.ID, "✏️ Updated\n\n"+h.eventDetails(*res.Event))
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /delete <id>")
		return
	}
	title := id
	if e, ok := s.Store.Event(id); ok {
		title = e.Title
	}
	if res := s.Store.Delete(ctx, id); res.Err != nil {
		h.sendMessage(msg.Chat.ID, errorText("delete the event", res.Err))
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Deleted **%s**", title))
}

func (h *Handlers) handleExport(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	events := s.Store.Items()
	if len(events) == 0 {
		h.sendMessage(msg.Chat.ID, "📭 No events to export")
		return
	}

	var buf bytes.Buffer
	if err := ical.Export(&buf, events, h.now()); err != nil {
		log.Printf("Failed to export calendar for %d: %v", msg.From.ID, err)
		h.sendMessage(msg.Chat.ID, "❌ Failed to export the calendar")
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: "calbuddy.ics", Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("📅 %d event(s)", len(events))
	if _, err := h.api.Send(doc); err != nil {
		log.Printf("Failed to send calendar export: %v", err)
	}
}
