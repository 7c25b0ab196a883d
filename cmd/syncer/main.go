package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/telemirror/telemirror/internal/api"
	"github.com/telemirror/telemirror/internal/config"
	"github.com/telemirror/telemirror/internal/database"
	"github.com/telemirror/telemirror/internal/logger"
	"github.com/telemirror/telemirror/internal/media"
	"github.com/telemirror/telemirror/internal/migrator"
	"github.com/telemirror/telemirror/internal/publisher"
	"github.com/telemirror/telemirror/internal/repository"
	"github.com/telemirror/telemirror/internal/syncer"
	"github.com/telemirror/telemirror/internal/telegram"
	"github.com/telemirror/telemirror/internal/web"
	"github.com/telemirror/telemirror/migrations"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting telemirror sync service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Run migrations
	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	if err := mig.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// 5. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// 6. Connect to NATS (optional: events and media storage)
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, events and media disabled")
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	var pub syncer.EventPublisher
	if nc != nil {
		pub = publisher.NewNATSPublisher(nc)
	}

	var mediaPipeline media.Pipeline = media.Noop{}
	if nc != nil && cfg.MediaEnabled {
		store, err := media.NewObjectStore(ctx, nc, cfg.MediaBucket, cfg.MediaPublicURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create media store, media disabled")
		} else {
			mediaPipeline = store
		}
	}

	// 7. Initialize repositories
	chatsRepo := repository.NewChatsRepository(db.Pool)
	messagesRepo := repository.NewMessagesRepository(db.Pool)
	runsRepo := repository.NewRunsRepository(db.Pool)

	// 8. Initialize telegram manager
	if cfg.TGApiID == 0 || cfg.TGApiHash == "" {
		log.Fatal().Msg("TG_API_ID and TG_API_HASH are required")
	}

	tgManager := telegram.NewManager(cfg, db.GORM)
	if err := tgManager.Init(ctx); err != nil {
		log.Error().Err(err).Msg("telegram manager init failed")
		// keep running, status stays Error/Unauthorized and the API reports it
	}

	tgClient := telegram.NewClient(tgManager)
	defer tgClient.Close()

	// 9. Initialize WebSocket hub
	hub := web.NewHub()
	go hub.Run()

	// 10. Initialize sync engine and run manager
	engine := syncer.NewService(
		tgClient,
		chatsRepo,
		messagesRepo,
		runsRepo,
		mediaPipeline,
		pub,
		hub,
		syncer.Options{
			FetchLimit:     cfg.FetchLimit,
			DialogLimit:    cfg.DialogLimit,
			Keywords:       cfg.Keywords,
			InterChatDelay: cfg.InterChatDelay,
		},
	)
	manager := syncer.NewManager(engine)

	// 11. Trigger surface
	handler := syncer.NewHandler(manager, tgClient, hub)
	router := syncer.NewRouter(handler, cfg.SyncToken, func(w http.ResponseWriter, r *http.Request) {
		web.ServeWs(hub, w, r)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	log.Info().Int("port", cfg.HTTPPort).Msg("starting sync trigger server")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// cancel() instead of exiting so the deferred cleanup still runs
			log.Error().Err(err).Msg("trigger server error")
			cancel()
		}
	}()

	// 12. Inspection API
	apiServer := api.NewServer(
		&api.Config{
			Port:        cfg.APIPort,
			Title:       "Telemirror API",
			Description: "Read-only API over mirrored Telegram chats",
			Version:     "dev",
		},
		&api.Dependencies{
			ChatsRepo:      chatsRepo,
			MessagesRepo:   messagesRepo,
			RunsRepo:       runsRepo,
			TelegramClient: tgClient,
			SyncManager:    manager,
		},
	)
	log.Info().Int("port", cfg.APIPort).Msg("starting inspection api server")
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api server error")
		}
	}()

	// 13. Optional internal ticker
	if cfg.SyncInterval > 0 {
		go runTicker(ctx, manager, cfg.SyncInterval, log)
	}

	// 14. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("trigger server shutdown error")
	}
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	tgManager.Stop()
	log.Info().Msg("shutdown complete")
}

// runTicker fires incremental runs on a fixed interval. A tick that finds
// a run already in progress is skipped.
func runTicker(ctx context.Context, manager *syncer.Manager, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Dur("interval", interval).Msg("internal sync ticker enabled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.Run(ctx, syncer.ModeIncremental); err != nil {
				if errors.Is(err, syncer.ErrAlreadyRunning) {
					log.Debug().Msg("tick skipped, run in progress")
					continue
				}
				log.Error().Err(err).Msg("scheduled run failed")
			}
		}
	}
}
