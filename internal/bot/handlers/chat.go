package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/conversation"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/query"
	"github.com/hray3182/CalBuddy/internal/session"
)

const historyLength = 10

func (h *Handlers) handleChat(ctx context.Context, chatID int64, s *session.Session, text string) {
	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := h.api.Request(typing); err != nil {
		log.Printf("Failed to send typing action: %v", err)
	}

	reply := s.Chat.Submit(ctx, text)
	h.debug("chat", "user", s.TelegramID, "type", s.Queries.LastType(), "err", reply.Err)
	if reply.Err != nil && api.IsUnauthorized(reply.Err) {
		// SessionExpired has already been sent by the invalidation hook
		return
	}

	out := reply.Message.Text
	switch res := reply.Result.(type) {
	case query.Creation:
		if len(reply.Slots) > 0 {
			out += fmt.Sprintf("\n\n📌 **%s**\nPick a time:", res.Details.Title)
			h.sendWithKeyboard(chatID, out, slotKeyboard(s.TelegramID, reply.Slots))
			return
		}
	case query.Retrieval:
		out += "\n" + h.eventList(res.Events)
	case query.Update, query.Deletion:
		// The assistant changed events on the server
		if r := s.Store.Fetch(ctx); r.Err != nil {
			log.Printf("Failed to refresh events for %d: %v", s.TelegramID, r.Err)
		}
	case query.Other, nil:
	}
	h.sendMessage(chatID, out)
}

func (h *Handlers) eventList(events []models.Event) string {
	if len(events) == 0 {
		return "\n📭 No matching events"
	}
	var sb strings.Builder
	for _, e := range events {
		start := e.StartDate.In(h.loc)
		fmt.Fprintf(&sb, "\n• %s %s  **%s**  `%s`", start.Format("Jan 2"), start.Format("03:04 PM"), e.Title, e.ID)
	}
	return sb.String()
}

func slotKeyboard(userID int64, slots []models.Slot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, sl := range slots {
		// callback data format: "slot:<userID>:<index>"
		data := fmt.Sprintf("slot:%d:%d", userID, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(sl.String(), data)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", fmt.Sprintf("slot:%d:cancel", userID)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handlers) handleSlotCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, s *session.Session, arg string) {
	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID

	if arg == "cancel" {
		s.Chat.CancelSlots()
		h.editMessageText(chatID, messageID, "❌ Cancelled")
		return
	}

	index, err := strconv.Atoi(arg)
	if err != nil {
		return
	}
	msg, err := s.Chat.AcceptSlot(ctx, index)
	switch {
	case errors.Is(err, conversation.ErrNoPendingSlots), errors.Is(err, conversation.ErrSlotIndex):
		h.editMessageText(chatID, messageID, "⏰ These suggestions are no longer available")
		return
	case err != nil && api.IsUnauthorized(err):
		return
	case err != nil:
		// The picker is still open, so the same buttons can be tried again
		log.Printf("Failed to accept slot for %d: %v", s.TelegramID, err)
		h.answerCallbackWithAlert(callback.ID, msg.Text)
		return
	}

	s.IndexLatest(ctx)
	h.editMessageText(chatID, messageID, "✅ "+msg.Text)
}

func (h *Handlers) handleSearch(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	if q := strings.TrimSpace(msg.CommandArguments()); q != "" {
		h.handleChat(ctx, msg.Chat.ID, s, q)
		return
	}
	if s.Queries.LastType() != models.QueryEventRetrieval {
		h.sendMessage(msg.Chat.ID, "🔎 No search results. Ask me something like \"what's on Friday?\"")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🔎 **Results for** %q", s.Queries.LastQuery())+h.eventList(s.Queries.SearchEvents()))
}

func (h *Handlers) handleClear(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	s.Queries.ClearResults()
	s.Chat.CancelSlots()
	s.Store.ClearError()
	h.sendMessage(msg.Chat.ID, "🧹 Cleared")
}

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	transcript := s.Chat.Transcript()
	if len(transcript) == 0 {
		h.sendMessage(msg.Chat.ID, "💬 No conversation yet")
		return
	}
	if len(transcript) > historyLength {
		transcript = transcript[len(transcript)-historyLength:]
	}

	var sb strings.Builder
	sb.WriteString("💬 **Recent conversation**\n")
	for _, m := range transcript {
		who := "🧑"
		if m.Speaker == conversation.SpeakerAssistant {
			who = "🤖"
		}
		fmt.Fprintf(&sb, "\n%s %s  %s", who, m.At.In(h.loc).Format("15:04"), m.Text)
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}
