package bot

import (
	"context"
	"errors"
)

var (
	ErrChapterNotFound  = errors.New("chapter not found")
	ErrRemoteFetch      = errors.New("remote chapter fetch failed")
	ErrMalformedToken   = errors.New("malformed callback token")
	ErrInvalidSelection = errors.New("selected option index out of range")
)

type Option struct {
	Text        string
	Correct     bool
	Explanation string
}

type Question struct {
	ID       int
	Question string
	Options  []Option
}

// Button is one inline-keyboard entry; Data is the callback token carried
// round-trip through Telegram.
type Button struct {
	Label string
	Data  string
}

type ChatSettings struct {
	ChatID          int64
	DailyEnabled    bool
	DailyTime       string
	Timezone        string
	LastDailySentOn string
}

type AnswerStats struct {
	Total   int
	Correct int
}

type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendQuestionMessage(ctx context.Context, chatID int64, text string, buttons []Button) error
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// QuestionSource loads a chapter's question set. Implementations re-read from
// source on every call; there is deliberately no caching layer.
type QuestionSource interface {
	Load(ctx context.Context, chapter string) ([]Question, error)
}

// StateStore keeps per-chat daily subscription settings and answer tallies.
// It never holds per-question session state: the callback token alone carries
// everything needed to rebuild a reveal.
type StateStore interface {
	GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error)
	UpsertDailySettings(ctx context.Context, chatID int64, enabled bool, hhmm, tz string) error
	MarkDailySent(ctx context.Context, chatID int64, day string) error
	ListDailyEnabledChats(ctx context.Context) ([]ChatSettings, error)
	RecordAnswer(ctx context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error
	AnswerStats(ctx context.Context, chatID int64) (AnswerStats, error)
}
