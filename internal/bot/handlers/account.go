package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/session"
)

func (h *Handlers) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /login <token>\n\nCopy the session token from the CalBuddy web app.")
		return
	}

	// The token should not stay in the chat history
	del := tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)
	if _, err := h.api.Request(del); err != nil {
		log.Printf("Failed to delete login message: %v", err)
	}

	s := h.sessions.Get(msg.From.ID)
	id, res, err := s.SignIn(ctx, raw)
	if err != nil {
		log.Printf("Sign in failed for %d: %v", msg.From.ID, err)
		text := "❌ That token was not accepted"
		if errors.Is(err, auth.ErrTokenExpired) {
			text = "❌ That token has expired, please copy a fresh one"
		}
		h.sendMessage(msg.Chat.ID, text)
		return
	}

	text := fmt.Sprintf("✅ Signed in as **%s**", displayName(id))
	if res.Err != nil {
		text += "\n\n" + errorText("load your events", res.Err)
	} else {
		text += fmt.Sprintf("\n\n📅 %d event(s) loaded. Try /today", len(s.Store.Items()))
	}
	h.sendMessage(msg.Chat.ID, text)
}

func displayName(id *auth.Identity) string {
	name := strings.TrimSpace(id.FirstName + " " + id.LastName)
	switch {
	case name != "":
		return name
	case id.Email != "":
		return id.Email
	}
	return id.UserID
}

func (h *Handlers) handleLogout(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	s.SignOut(ctx)
	h.sendMessage(msg.Chat.ID, "👋 Signed out")
}

func (h *Handlers) handlePlan(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	sub, err := s.API.SubscriptionStatus(ctx)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("load your subscription", err))
		return
	}

	var sb strings.Builder
	sb.WriteString("💳 **Subscription**\n")
	if h.plans == nil {
		fmt.Fprintf(&sb, "\nCurrent plan: %s", sub.Status)
		h.sendMessage(msg.Chat.ID, sb.String())
		return
	}

	current, _ := h.plans.ForStatus(sub.Status)
	for _, p := range h.plans.Plans {
		mark := "▫️"
		if p.ID == current.ID {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "\n%s **%s** %s  `%s`\n", mark, p.Name, p.Price, p.ID)
		for _, f := range p.Features {
			fmt.Fprintf(&sb, "   • %s\n", f)
		}
	}
	sb.WriteString("\nUse /upgrade <plan> to change plans")
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleUpgrade(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" || h.plans == nil {
		h.sendMessage(msg.Chat.ID, "Usage: /upgrade <plan>\n\nSee /plan for the available plans.")
		return
	}
	plan, ok := h.plans.Find(arg)
	if !ok {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ Unknown plan %q, see /plan", arg))
		return
	}
	if !plan.Paid() {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("The %s plan needs no checkout", plan.Name))
		return
	}

	checkout, err := s.API.CreateCheckoutSession(ctx, plan.PriceID, plan.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("start checkout", err))
		return
	}
	if checkout.URL == "" {
		h.sendMessage(msg.Chat.ID, "❌ Checkout is not available right now")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Subscribe to "+plan.Name, checkout.URL),
		),
	)
	h.sendWithKeyboard(msg.Chat.ID, fmt.Sprintf("**%s** %s", plan.Name, plan.Price), keyboard)
}

func (h *Handlers) handleDebug(ctx context.Context, msg *tgbotapi.Message, s *session.Session) {
	if !h.devMode {
		h.sendMessage(msg.Chat.ID, "Unknown command, use /help to see what I can do")
		return
	}

	var sb strings.Builder
	sb.WriteString("🛠 **Session state**\n```\n")
	if id, ok := s.Gate.Identity(); ok {
		fmt.Fprintf(&sb, "user        %s\n", id.UserID)
		fmt.Fprintf(&sb, "expires     %s\n", id.ExpiresAt.In(h.loc).Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&sb, "events      %d\n", len(s.Store.Items()))
	fmt.Fprintf(&sb, "dates       %d\n", len(s.Store.DateKeys()))
	fmt.Fprintf(&sb, "loading     %v\n", s.Store.Loading())
	fmt.Fprintf(&sb, "store err   %v\n", s.Store.Err())
	fmt.Fprintf(&sb, "modal open  %v\n", s.Store.ModalOpen())
	fmt.Fprintf(&sb, "last query  %q (%s)\n", s.Queries.LastQuery(), s.Queries.LastType())
	fmt.Fprintf(&sb, "query err   %v\n", s.Queries.Err())
	fmt.Fprintf(&sb, "results     %d\n", len(s.Queries.SearchEvents()))
	fmt.Fprintf(&sb, "slots       %d\n", len(s.Chat.PendingSlots()))
	sb.WriteString("```")
	h.sendMessage(msg.Chat.ID, sb.String())
}
