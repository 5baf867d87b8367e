package adapters

import (
	"context"
	"errors"

	"telegram-quiz-bot/internal/bot"
	"telegram-quiz-bot/internal/questions"
	"telegram-quiz-bot/internal/storage"
	"telegram-quiz-bot/internal/telegram"
)

func NewQuestionSource(store *questions.Store) bot.QuestionSource {
	return &questionSource{store: store}
}

type questionSource struct {
	store *questions.Store
}

func (p *questionSource) Load(ctx context.Context, chapter string) ([]bot.Question, error) {
	qs, err := p.store.Load(ctx, chapter)
	if err != nil {
		switch {
		case errors.Is(err, questions.ErrChapterNotFound):
			return nil, errors.Join(bot.ErrChapterNotFound, err)
		case errors.Is(err, questions.ErrRemoteFetch):
			return nil, errors.Join(bot.ErrRemoteFetch, err)
		}
		return nil, err
	}

	out := make([]bot.Question, 0, len(qs))
	for _, q := range qs {
		opts := make([]bot.Option, 0, len(q.Options))
		for _, opt := range q.Options {
			opts = append(opts, bot.Option{
				Text:        opt.Text,
				Correct:     opt.Correct,
				Explanation: opt.Explanation,
			})
		}
		out = append(out, bot.Question{
			ID:       q.ID,
			Question: q.Question,
			Options:  opts,
		})
	}
	return out, nil
}

// settingsStore is satisfied by both the Firestore and the in-memory store.
type settingsStore interface {
	GetChatSettings(ctx context.Context, chatID int64) (storage.ChatSettings, error)
	UpsertDailySettings(ctx context.Context, chatID int64, enabled bool, hhmm, tz string) error
	MarkDailySent(ctx context.Context, chatID int64, day string) error
	RecordAnswer(ctx context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error
	AnswerStats(ctx context.Context, chatID int64) (storage.AnswerStats, error)
	ListDailyEnabledChats(ctx context.Context) ([]storage.ChatSettings, error)
}

func NewStateStore(store settingsStore) bot.StateStore {
	return &stateStore{store: store}
}

type stateStore struct {
	store settingsStore
}

func (s *stateStore) GetChatSettings(ctx context.Context, chatID int64) (bot.ChatSettings, error) {
	item, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return bot.ChatSettings{}, err
	}
	return mapChatSettings(item), nil
}

func (s *stateStore) UpsertDailySettings(ctx context.Context, chatID int64, enabled bool, hhmm, tz string) error {
	return s.store.UpsertDailySettings(ctx, chatID, enabled, hhmm, tz)
}

func (s *stateStore) MarkDailySent(ctx context.Context, chatID int64, day string) error {
	return s.store.MarkDailySent(ctx, chatID, day)
}

func (s *stateStore) RecordAnswer(ctx context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error {
	return s.store.RecordAnswer(ctx, chatID, chapter, questionID, optionIndex, correct)
}

func (s *stateStore) AnswerStats(ctx context.Context, chatID int64) (bot.AnswerStats, error) {
	stats, err := s.store.AnswerStats(ctx, chatID)
	if err != nil {
		return bot.AnswerStats{}, err
	}
	return bot.AnswerStats{Total: stats.Total, Correct: stats.Correct}, nil
}

func (s *stateStore) ListDailyEnabledChats(ctx context.Context) ([]bot.ChatSettings, error) {
	items, err := s.store.ListDailyEnabledChats(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]bot.ChatSettings, 0, len(items))
	for _, item := range items {
		out = append(out, mapChatSettings(item))
	}
	return out, nil
}

func mapChatSettings(in storage.ChatSettings) bot.ChatSettings {
	return bot.ChatSettings{
		ChatID:          in.ChatID,
		DailyEnabled:    in.DailyEnabled,
		DailyTime:       in.DailyTime,
		Timezone:        in.Timezone,
		LastDailySentOn: in.LastDailySentOn,
	}
}

func NewTelegramSender(client *telegram.Client) bot.TelegramSender {
	return &telegramSender{client: client}
}

type telegramSender struct {
	client *telegram.Client
}

func (t *telegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	return t.client.SendMessage(ctx, chatID, text)
}

func (t *telegramSender) SendQuestionMessage(ctx context.Context, chatID int64, text string, buttons []bot.Button) error {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: b.Label, Data: b.Data}})
	}
	return t.client.SendRichMessage(ctx, chatID, text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (t *telegramSender) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	return t.client.EditMessageText(ctx, chatID, messageID, text)
}

func (t *telegramSender) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return t.client.AnswerCallbackQuery(ctx, callbackID)
}
