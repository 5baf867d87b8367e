package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"telegram-quiz-bot/internal/config"
	"telegram-quiz-bot/internal/telegram"
)

const defaultPacing = 600 * time.Millisecond

type Service struct {
	logger        *slog.Logger
	tgClient      TelegramSender
	questions     QuestionSource
	store         StateStore
	chapters      []string
	mode          string
	primaryChatID int64
	perRun        int
	webhookSecret string
	cronSecret    string
	defaultHHMM   string
	defaultTZ     string
	defaultLoc    *time.Location
	pace          time.Duration
	nowFn         func() time.Time
}

func NewService(
	logger *slog.Logger,
	tgClient TelegramSender,
	questions QuestionSource,
	store StateStore,
	cfg config.Config,
) *Service {
	return &Service{
		logger:        logger,
		tgClient:      tgClient,
		questions:     questions,
		store:         store,
		chapters:      cfg.Chapters,
		mode:          cfg.Mode,
		primaryChatID: cfg.ChatID,
		perRun:        cfg.QuestionsPerRun,
		webhookSecret: cfg.WebhookSecret,
		cronSecret:    cfg.CronSecret,
		defaultHHMM:   fmt.Sprintf("%02d:%02d", cfg.ScheduleHour, cfg.ScheduleMinute),
		defaultTZ:     cfg.Timezone,
		defaultLoc:    cfg.Location(),
		pace:          defaultPacing,
		nowFn:         time.Now,
	}
}

func (s *Service) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/webhook/"+s.webhookSecret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	defer r.Body.Close()

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Errors never escape a single update: log, reply generically, move on.
	switch {
	case update.CallbackQuery != nil:
		if err := s.handleCallback(r.Context(), *update.CallbackQuery); err != nil {
			s.logger.Error("handle callback failed", "error", err)
		}
	case update.Message != nil:
		if err := s.handleMessage(r.Context(), *update.Message); err != nil {
			s.logger.Error("handle message failed", "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// CronHandler is a manual batch trigger for deployments that prefer an
// external scheduler over the built-in one. Disabled unless CRON_SECRET is
// configured.
func (s *Service) CronHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cronSecret == "" || r.Header.Get("X-Cron-Secret") != s.cronSecret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sent := s.RunBatch(r.Context(), s.perRun)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf("requested=%d sent=%d", s.perRun, sent)))
}

func (s *Service) handleMessage(ctx context.Context, msg telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return s.handleCommand(ctx, msg.Chat.ID, text)
	}
	return nil
}

func (s *Service) handleCallback(ctx context.Context, cb telegram.CallbackQuery) error {
	// Ack first so the button stops spinning regardless of what the
	// resolution below does.
	if err := s.tgClient.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		s.logger.Warn("answer callback query failed", "error", err)
	}

	if cb.Message == nil {
		return fmt.Errorf("callback %s has no originating message", cb.ID)
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	reveal, err := s.resolveChoice(ctx, chatID, cb.Data)
	if err != nil {
		s.logger.Error("resolve choice failed", "chat", chatID, "data", cb.Data, "error", err)
		return s.tgClient.EditMessageText(ctx, chatID, messageID, "An error occurred while processing your answer.")
	}

	return s.tgClient.EditMessageText(ctx, chatID, messageID, reveal)
}

// resolveChoice is stateless by design: the token carries chapter, question id
// and option index, and the chapter is reloaded fresh to rebuild the reveal.
func (s *Service) resolveChoice(ctx context.Context, chatID int64, token string) (string, error) {
	chapter, questionID, optionIndex, err := DecodeToken(token)
	if err != nil {
		return "", err
	}

	qs, err := s.questions.Load(ctx, chapter)
	if err != nil {
		return "", err
	}

	q, ok := findQuestion(qs, questionID)
	if !ok {
		// The bank may have changed between send and click; tell the user
		// instead of failing the whole callback.
		return "Question data not found.", nil
	}

	reveal, err := renderReveal(q, optionIndex)
	if err != nil {
		return "", err
	}

	if err := s.store.RecordAnswer(ctx, chatID, chapter, questionID, optionIndex, optionIndex == correctIndex(q)); err != nil {
		s.logger.Warn("record answer failed", "chat", chatID, "chapter", chapter, "error", err)
	}

	return reveal, nil
}

// ProcessDueChats sends one question to every subscribed chat whose local time
// has reached its daily HH:MM and that has not received one today. Meant to
// run once a minute; the last-sent-day dedup keeps a late or missed tick from
// skipping a chat's whole day or sending twice.
func (s *Service) ProcessDueChats(ctx context.Context) {
	chats, err := s.store.ListDailyEnabledChats(ctx)
	if err != nil {
		s.logger.Error("list daily chats failed", "error", err)
		return
	}

	nowUTC := s.nowFn().UTC()
	for _, chat := range chats {
		loc := s.resolveLocation(chat.Timezone)
		now := nowUTC.In(loc)

		hhmm := chat.DailyTime
		if hhmm == "" {
			hhmm = s.defaultHHMM
		}
		at, err := time.Parse("15:04", hhmm)
		if err != nil {
			s.logger.Warn("invalid daily time", "chat", chat.ChatID, "time", hhmm)
			continue
		}
		dueAt := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, loc)
		if now.Before(dueAt) {
			continue
		}

		today := now.Format("2006-01-02")
		if chat.LastDailySentOn == today {
			continue
		}

		if err := s.sendQuizQuestion(ctx, chat.ChatID); err != nil {
			s.logger.Error("daily send failed", "chat", chat.ChatID, "error", err)
			continue
		}
		if err := s.store.MarkDailySent(ctx, chat.ChatID, today); err != nil {
			s.logger.Error("mark daily sent failed", "chat", chat.ChatID, "error", err)
		}
	}
}

// Warmup pre-loads the first chapter so configuration mistakes surface in the
// logs right after startup rather than at the first scheduled run.
func (s *Service) Warmup(ctx context.Context) {
	if _, err := s.questions.Load(ctx, s.chapters[0]); err != nil {
		s.logger.Warn("warmup chapter load failed", "chapter", s.chapters[0], "error", err)
	}
}

func (s *Service) resolveLocation(name string) *time.Location {
	if name == "" {
		return s.defaultLoc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return s.defaultLoc
	}
	return loc
}
