package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"

	"telegram-quiz-bot/internal/adapters"
	"telegram-quiz-bot/internal/bot"
	"telegram-quiz-bot/internal/config"
	"telegram-quiz-bot/internal/logging"
	"telegram-quiz-bot/internal/questions"
	"telegram-quiz-bot/internal/schedule"
	"telegram-quiz-bot/internal/storage"
	"telegram-quiz-bot/internal/telegram"
)

func Main() {
	_ = godotenv.Load()

	logger := slog.New(logging.NewColorHandler(os.Stdout, slog.LevelDebug))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(questions.DiscoverChapters)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger.Info("configuration loaded", "chapters", cfg.Chapters, "mode", cfg.Mode)

	ctx := context.Background()

	store, closeStore, err := buildStateStore(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tgClient := telegram.NewClient(cfg.BotToken)
	questionStore := questions.NewStore(cfg.QuestionsDir, cfg.GitHubRawBase)

	service := bot.NewService(
		logger,
		adapters.NewTelegramSender(tgClient),
		adapters.NewQuestionSource(questionStore),
		store,
		cfg,
	)

	if cfg.AutoSetWebhook {
		autoSetWebhook(ctx, logger, tgClient, cfg.BotBaseURL, cfg.WebhookSecret)
	}

	go service.Warmup(context.Background())

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()

	daily := schedule.NewDaily(cfg.ScheduleHour, cfg.ScheduleMinute, cfg.Location(), logger, func(ctx context.Context) {
		service.RunBatch(ctx, cfg.QuestionsPerRun)
	})
	go daily.Run(schedCtx)
	go schedule.Every(schedCtx, time.Minute, service.ProcessDueChats)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/webhook/", service.WebhookHandler)
	mux.HandleFunc("/cron/daily", service.CronHandler)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		<-sigCh
		stopSched()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(shutdownDone)
	}()

	logger.Info("bot server listening", "addr", httpServer.Addr)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-shutdownDone
	logger.Info("shutdown complete")
	return nil
}

// buildStateStore picks Firestore when a project is configured, otherwise the
// in-memory store. The quiz flow itself is stateless either way; the store
// only carries daily subscriptions and answer tallies.
func buildStateStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (bot.StateStore, func(), error) {
	defaultHHMM := fmt.Sprintf("%02d:%02d", cfg.ScheduleHour, cfg.ScheduleMinute)

	if cfg.FirestoreProject == "" {
		logger.Info("using in-memory state store (FIRESTORE_PROJECT_ID not set)")
		return adapters.NewStateStore(storage.NewMemoryStore(defaultHHMM, cfg.Timezone)), func() {}, nil
	}

	fireClient, err := firestore.NewClient(ctx, cfg.FirestoreProject)
	if err != nil {
		return nil, nil, fmt.Errorf("create firestore client: %w", err)
	}
	closeFn := func() {
		if err := fireClient.Close(); err != nil {
			logger.Error("close firestore client", "error", err)
		}
	}
	logger.Info("using firestore state store", "project", cfg.FirestoreProject)
	return adapters.NewStateStore(storage.NewStore(fireClient, defaultHHMM, cfg.Timezone)), closeFn, nil
}

func autoSetWebhook(ctx context.Context, logger *slog.Logger, client *telegram.Client, baseURL, secret string) {
	if baseURL == "" {
		logger.Warn("AUTO_SET_WEBHOOK=true but BOT_BASE_URL is empty; skipping")
		return
	}

	webhookURL, err := telegram.BuildWebhookURL(baseURL, secret)
	if err != nil {
		logger.Warn("build webhook URL failed", "error", err)
		return
	}

	setCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := client.SetWebhook(setCtx, webhookURL); err != nil {
		logger.Warn("set webhook failed", "error", err)
		return
	}
	logger.Info("webhook set", "url", webhookURL)
}
