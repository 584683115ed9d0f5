package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hray3182/CalBuddy/internal/ai"
	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/bot"
	"github.com/hray3182/CalBuddy/internal/bot/handlers"
	"github.com/hray3182/CalBuddy/internal/config"
	"github.com/hray3182/CalBuddy/internal/database"
	"github.com/hray3182/CalBuddy/internal/query"
	"github.com/hray3182/CalBuddy/internal/repository"
	"github.com/hray3182/CalBuddy/internal/scheduler"
	"github.com/hray3182/CalBuddy/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate required config
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Fatalf("Failed to load plans: %v", err)
	}

	verifier, err := auth.NewVerifier(cfg.ClerkJWTKey)
	if err != nil {
		log.Fatalf("Failed to load session key: %v", err)
	}
	if !verifier.Verifies() {
		log.Println("CLERK_JWT_KEY not set, session token signatures are not checked")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := session.Deps{
		BaseURL:     cfg.APIURL,
		HTTPTimeout: cfg.HTTPTimeout,
		Verifier:    verifier,
		Location:    cfg.Location,
	}

	// Database is optional: without it sessions and embedding marks live in memory
	var pruner scheduler.Pruner
	if cfg.DatabaseURI != "" {
		db, err := database.New(ctx, cfg.DatabaseURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to database")

		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed")

		embeddings := repository.NewEmbeddingRepository(db)
		deps.Tokens = repository.NewSessionRepository(db)
		deps.Ledgers = func(userID string) query.EmbeddingLedger { return embeddings.ForUser(userID) }
		pruner = embeddings
	} else {
		log.Println("DATABASE_URI not set, sessions will not survive a restart")
		deps.Ledgers = memoryLedgers()
	}

	// Initialize AI client (optional)
	if cfg.AIAPIKey != "" {
		deps.LocalAI = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Printf("Local AI interpreter initialized (model: %s)", cfg.AIModel)
	} else {
		log.Println("AI client not configured, queries go to the CalBuddy API")
	}

	tgAPI, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram API: %v", err)
	}

	// The handlers need the registry and the registry reports expired
	// sessions to the handlers.
	var h *handlers.Handlers
	deps.Invalidated = func(telegramID int64) {
		if h != nil {
			h.SessionExpired(telegramID)
		}
	}
	sessions := session.NewRegistry(deps)

	b := bot.New(tgAPI, sessions, handlers.Options{
		Location:  cfg.Location,
		WeekStart: cfg.WeekStart,
		Plans:     plans,
		DevMode:   cfg.DevMode,
	})
	h = b.Handlers()

	restored, err := sessions.Restore(ctx)
	if err != nil {
		log.Printf("Failed to restore sessions: %v", err)
	} else if restored > 0 {
		log.Printf("Restored %d session(s)", restored)
	}

	// Create and start scheduler
	sched, err := scheduler.New(sessions, pruner, h.Notify, scheduler.Config{
		EmbeddingsSpec: cfg.EmbeddingsCron,
		AgendaSpec:     cfg.AgendaCron,
		Location:       cfg.Location,
	})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	go sched.Start(ctx)

	// Handle graceful shutdown; SIGHUP refreshes embeddings right away
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				sched.Notify()
				continue
			}
			log.Println("Shutting down...")
			cancel()
			return
		}
	}()

	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Bot error: %v", err)
	}
}

func memoryLedgers() session.LedgerFactory {
	var mu sync.Mutex
	ledgers := make(map[string]*query.MemoryLedger)
	return func(userID string) query.EmbeddingLedger {
		mu.Lock()
		defer mu.Unlock()
		l, ok := ledgers[userID]
		if !ok {
			l = query.NewMemoryLedger()
			ledgers[userID] = l
		}
		return l
	}
}
