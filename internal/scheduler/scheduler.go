package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/calendar"
	"github.com/hray3182/CalBuddy/internal/session"
	"github.com/robfig/cron/v3"
)

// Sessions lists the live chat sessions.
type Sessions interface {
	All() []*session.Session
}

// Pruner drops embedding marks older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier delivers a text to a chat user.
type Notifier func(telegramID int64, text string) error

type Config struct {
	// EmbeddingsSpec and AgendaSpec are cron expressions; empty disables the job.
	EmbeddingsSpec string
	AgendaSpec     string
	Location       *time.Location
	// MarkRetention is how long per-event embedding marks are kept.
	MarkRetention time.Duration
}

type Scheduler struct {
	sessions Sessions
	pruner   Pruner
	notify   Notifier
	cfg      Config
	cron     *cron.Cron
	notifyCh chan struct{}
}

func New(sessions Sessions, pruner Pruner, notify Notifier, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MarkRetention == 0 {
		cfg.MarkRetention = 30 * 24 * time.Hour
	}
	s := &Scheduler{
		sessions: sessions,
		pruner:   pruner,
		notify:   notify,
		cfg:      cfg,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		notifyCh: make(chan struct{}, 1),
	}

	if cfg.EmbeddingsSpec != "" {
		if _, err := s.cron.AddFunc(cfg.EmbeddingsSpec, func() { s.refreshEmbeddings(context.Background()) }); err != nil {
			return nil, fmt.Errorf("invalid embeddings schedule %q: %w", cfg.EmbeddingsSpec, err)
		}
	}
	if cfg.AgendaSpec != "" && notify != nil {
		if _, err := s.cron.AddFunc(cfg.AgendaSpec, func() { s.sendAgendas(context.Background()) }); err != nil {
			return nil, fmt.Errorf("invalid agenda schedule %q: %w", cfg.AgendaSpec, err)
		}
	}
	return s, nil
}

// Notify triggers an immediate embeddings refresh. Non-blocking if one is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("Scheduler started with %d job(s)", len(s.cron.Entries()))
	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
		log.Println("Scheduler stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notifyCh:
			log.Println("Scheduler triggered by notification")
			s.refreshEmbeddings(ctx)
		}
	}
}

func signedIn(sessions Sessions) []*session.Session {
	var out []*session.Session
	for _, sess := range sessions.All() {
		if sess.Gate.State() == auth.SignedIn {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Scheduler) refreshEmbeddings(ctx context.Context) {
	active := signedIn(s.sessions)
	for _, sess := range active {
		sess.RefreshEmbeddings(ctx)
	}

	if s.pruner != nil {
		cutoff := time.Now().Add(-s.cfg.MarkRetention)
		n, err := s.pruner.Prune(ctx, cutoff)
		if err != nil {
			log.Printf("Failed to prune embedding marks: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d embedding mark(s)", n)
		}
	}
	log.Printf("Embeddings refreshed for %d session(s)", len(active))
}

// sendAgendas refetches every signed-in user's events and sends today's list.
func (s *Scheduler) sendAgendas(ctx context.Context) {
	for _, sess := range signedIn(s.sessions) {
		if res := sess.Store.Fetch(ctx); res.Err != nil {
			log.Printf("Failed to refresh events for %d: %v", sess.TelegramID, res.Err)
			continue
		}
		today := sess.Store.TodayEvents()
		if len(today) == 0 {
			continue
		}
		text := calendar.Agenda("☀️ Good morning! Today's agenda", today)
		if err := s.notify(sess.TelegramID, text); err != nil {
			log.Printf("Failed to send agenda to %d: %v", sess.TelegramID, err)
		}
	}
}
