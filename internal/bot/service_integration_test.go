package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-quiz-bot/internal/config"
	"telegram-quiz-bot/internal/telegram"
)

type sentQuestion struct {
	chatID  int64
	text    string
	buttons []Button
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
}

type fakeSender struct {
	messages  map[int64][]string
	questions []sentQuestion
	edits     []editedMessage
	acked     []string
	failSends int
	sendCount int
}

func newFakeSender() *fakeSender {
	return &fakeSender{messages: make(map[int64][]string)}
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.messages[chatID] = append(f.messages[chatID], text)
	return nil
}

func (f *fakeSender) SendQuestionMessage(_ context.Context, chatID int64, text string, buttons []Button) error {
	f.sendCount++
	if f.failSends > 0 && f.sendCount == f.failSends {
		return fmt.Errorf("simulated transport failure")
	}
	f.questions = append(f.questions, sentQuestion{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID int64, messageID int, text string) error {
	f.edits = append(f.edits, editedMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, callbackID string) error {
	f.acked = append(f.acked, callbackID)
	return nil
}

type fakeQuestionSource struct {
	chapters map[string][]Question
	loads    int
}

func (f *fakeQuestionSource) Load(_ context.Context, chapter string) ([]Question, error) {
	f.loads++
	qs, ok := f.chapters[chapter]
	if !ok {
		return nil, ErrChapterNotFound
	}
	out := make([]Question, len(qs))
	copy(out, qs)
	return out, nil
}

type recordedAnswer struct {
	chatID     int64
	chapter    string
	questionID int
	option     int
	correct    bool
}

type memStore struct {
	chats    map[int64]ChatSettings
	answers  []recordedAnswer
	statsFor map[int64]AnswerStats
}

func newMemStore() *memStore {
	return &memStore{
		chats:    make(map[int64]ChatSettings),
		statsFor: make(map[int64]AnswerStats),
	}
}

func (m *memStore) GetChatSettings(_ context.Context, chatID int64) (ChatSettings, error) {
	if item, ok := m.chats[chatID]; ok {
		return item, nil
	}
	return ChatSettings{ChatID: chatID}, nil
}

func (m *memStore) UpsertDailySettings(_ context.Context, chatID int64, enabled bool, hhmm, tz string) error {
	item := m.chats[chatID]
	item.ChatID = chatID
	item.DailyEnabled = enabled
	item.DailyTime = hhmm
	item.Timezone = tz
	m.chats[chatID] = item
	return nil
}

func (m *memStore) MarkDailySent(_ context.Context, chatID int64, day string) error {
	item := m.chats[chatID]
	item.ChatID = chatID
	item.LastDailySentOn = day
	m.chats[chatID] = item
	return nil
}

func (m *memStore) ListDailyEnabledChats(_ context.Context) ([]ChatSettings, error) {
	out := make([]ChatSettings, 0)
	for _, item := range m.chats {
		if item.DailyEnabled {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memStore) RecordAnswer(_ context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error {
	m.answers = append(m.answers, recordedAnswer{chatID, chapter, questionID, optionIndex, correct})
	stats := m.statsFor[chatID]
	stats.Total++
	if correct {
		stats.Correct++
	}
	m.statsFor[chatID] = stats
	return nil
}

func (m *memStore) AnswerStats(_ context.Context, chatID int64) (AnswerStats, error) {
	return m.statsFor[chatID], nil
}

func testConfig() config.Config {
	return config.Config{
		BotToken:        "test-token",
		ChatID:          100,
		WebhookSecret:   "hook-secret",
		CronSecret:      "cron-secret",
		QuestionsPerRun: 1,
		ScheduleHour:    10,
		ScheduleMinute:  0,
		Timezone:        "UTC",
		Mode:            config.ModeRandom,
		Chapters:        []string{"ch1"},
	}
}

func testService(t *testing.T) (*Service, *fakeSender, *fakeQuestionSource, *memStore) {
	t.Helper()

	sender := newFakeSender()
	source := &fakeQuestionSource{chapters: map[string][]Question{
		"ch1": {
			{
				ID:       1,
				Question: "2+2=?",
				Options: []Option{
					{Text: "3"},
					{Text: "4", Correct: true, Explanation: "basic addition"},
					{Text: "5"},
				},
			},
		},
	}}
	store := newMemStore()

	svc := NewService(slog.New(slog.NewTextHandler(&strings.Builder{}, nil)), sender, source, store, testConfig())
	svc.pace = time.Millisecond
	return svc, sender, source, store
}

func postWebhookUpdate(t *testing.T, svc *Service, update telegram.Update) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/hook-secret", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	return rec
}

func callbackUpdate(data string) telegram.Update {
	return telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			Message: &telegram.Message{
				MessageID: 55,
				Chat:      telegram.Chat{ID: 200},
			},
		},
	}
}

func TestCallbackProducesRevealEdit(t *testing.T) {
	svc, sender, _, store := testService(t)

	rec := postWebhookUpdate(t, svc, callbackUpdate(EncodeToken("ch1", 1, 1)))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, sender.acked, 1, "callback must be acknowledged")
	require.Len(t, sender.edits, 1)
	edit := sender.edits[0]
	assert.Equal(t, int64(200), edit.chatID)
	assert.Equal(t, 55, edit.messageID)
	assert.Contains(t, edit.text, "✅ 4")
	assert.Contains(t, edit.text, "💡 basic addition")

	require.Len(t, store.answers, 1)
	assert.Equal(t, recordedAnswer{chatID: 200, chapter: "ch1", questionID: 1, option: 1, correct: true}, store.answers[0])
}

func TestCallbackWrongAnswerRecordedAsIncorrect(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, callbackUpdate(EncodeToken("ch1", 1, 0)))

	require.Len(t, sender.edits, 1)
	assert.Contains(t, sender.edits[0].text, "❌ 3")
	require.Len(t, store.answers, 1)
	assert.False(t, store.answers[0].correct)
}

func TestCallbackMalformedTokenYieldsGenericError(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, callbackUpdate("not-a-token"))

	require.Len(t, sender.acked, 1)
	require.Len(t, sender.edits, 1)
	assert.Equal(t, "An error occurred while processing your answer.", sender.edits[0].text)
	assert.Empty(t, store.answers)
}

func TestCallbackStaleQuestionYieldsNotFoundMessage(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, callbackUpdate(EncodeToken("ch1", 999, 0)))

	require.Len(t, sender.edits, 1)
	assert.Equal(t, "Question data not found.", sender.edits[0].text)
	assert.Empty(t, store.answers)
}

func TestCallbackUnknownChapterYieldsGenericError(t *testing.T) {
	svc, sender, _, _ := testService(t)

	postWebhookUpdate(t, svc, callbackUpdate(EncodeToken("gone", 1, 0)))

	require.Len(t, sender.edits, 1)
	assert.Equal(t, "An error occurred while processing your answer.", sender.edits[0].text)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	svc, _, _, _ := testService(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/wrong", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStartCommandAcknowledges(t *testing.T) {
	svc, sender, _, _ := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/start",
		Chat: telegram.Chat{ID: 300},
	}})

	require.Len(t, sender.messages[300], 1)
	assert.Contains(t, sender.messages[300][0], "Bot active")
}

func TestQuizCommandSendsQuestionWithKeyboard(t *testing.T) {
	svc, sender, _, _ := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/quiz",
		Chat: telegram.Chat{ID: 300},
	}})

	require.Len(t, sender.questions, 1)
	sent := sender.questions[0]
	assert.Equal(t, int64(300), sent.chatID)
	assert.Contains(t, sent.text, "📚 <b>ch1</b>")
	require.Len(t, sent.buttons, 3)
	assert.Equal(t, EncodeToken("ch1", 1, 0), sent.buttons[0].Data)
}

func TestDailySubscriptionFlow(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_on 08:30",
		Chat: telegram.Chat{ID: 300},
	}})

	settings := store.chats[300]
	assert.True(t, settings.DailyEnabled)
	assert.Equal(t, "08:30", settings.DailyTime)
	require.NotEmpty(t, sender.messages[300])
	assert.Contains(t, sender.messages[300][0], "Daily quiz is ON at 08:30")

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_off",
		Chat: telegram.Chat{ID: 300},
	}})
	assert.False(t, store.chats[300].DailyEnabled)
}

func TestDailyOnWithTimezoneArgument(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_on 08:30 Asia/Tokyo",
		Chat: telegram.Chat{ID: 300},
	}})

	settings := store.chats[300]
	assert.True(t, settings.DailyEnabled)
	assert.Equal(t, "08:30", settings.DailyTime)
	assert.Equal(t, "Asia/Tokyo", settings.Timezone)
	require.NotEmpty(t, sender.messages[300])
	assert.Contains(t, sender.messages[300][0], "08:30 Asia/Tokyo")
}

func TestDailyOnRejectsUnknownTimezone(t *testing.T) {
	svc, sender, _, store := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_on 08:30 Mars/Olympus",
		Chat: telegram.Chat{ID: 300},
	}})

	assert.False(t, store.chats[300].DailyEnabled)
	require.NotEmpty(t, sender.messages[300])
	assert.Contains(t, sender.messages[300][0], "Unknown timezone")
}

func TestDailyTimeKeepsChosenTimezone(t *testing.T) {
	svc, _, _, store := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_on 08:30 Asia/Tokyo",
		Chat: telegram.Chat{ID: 300},
	}})
	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/daily_time 21:00",
		Chat: telegram.Chat{ID: 300},
	}})

	settings := store.chats[300]
	assert.Equal(t, "21:00", settings.DailyTime)
	assert.Equal(t, "Asia/Tokyo", settings.Timezone, "changing the time must not reset the timezone")
}

func TestStatsCommand(t *testing.T) {
	svc, sender, _, store := testService(t)
	store.statsFor[300] = AnswerStats{Total: 4, Correct: 3}

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/stats",
		Chat: telegram.Chat{ID: 300},
	}})

	require.NotEmpty(t, sender.messages[300])
	assert.Contains(t, sender.messages[300][0], "Answers in this chat: 4")
	assert.Contains(t, sender.messages[300][0], "Correct: 3 (75%)")
}

func TestUnknownCommand(t *testing.T) {
	svc, sender, _, _ := testService(t)

	postWebhookUpdate(t, svc, telegram.Update{Message: &telegram.Message{
		Text: "/bogus",
		Chat: telegram.Chat{ID: 300},
	}})

	require.NotEmpty(t, sender.messages[300])
	assert.Contains(t, sender.messages[300][0], "Unknown command")
}

func TestProcessDueChatsSendsOncePerDay(t *testing.T) {
	svc, sender, _, store := testService(t)

	require.NoError(t, store.UpsertDailySettings(context.Background(), 400, true, "09:15", "UTC"))

	svc.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 9, 15, 30, 0, time.UTC)
	}

	svc.ProcessDueChats(context.Background())
	require.Len(t, sender.questions, 1)
	assert.Equal(t, int64(400), sender.questions[0].chatID)
	assert.Equal(t, "2025-06-01", store.chats[400].LastDailySentOn)

	// Same minute again: already marked sent today.
	svc.ProcessDueChats(context.Background())
	assert.Len(t, sender.questions, 1)
}

func TestProcessDueChatsSkipsBeforeDueTime(t *testing.T) {
	svc, sender, _, store := testService(t)

	require.NoError(t, store.UpsertDailySettings(context.Background(), 400, true, "09:15", "UTC"))

	svc.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	}

	svc.ProcessDueChats(context.Background())
	assert.Empty(t, sender.questions)
}

func TestProcessDueChatsCatchesUpAfterMissedTick(t *testing.T) {
	svc, sender, _, store := testService(t)

	require.NoError(t, store.UpsertDailySettings(context.Background(), 400, true, "09:15", "UTC"))

	// The 09:15 tick never ran; the sweep at noon still owes the chat today's
	// question.
	svc.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	svc.ProcessDueChats(context.Background())
	require.Len(t, sender.questions, 1)
	assert.Equal(t, "2025-06-01", store.chats[400].LastDailySentOn)

	svc.ProcessDueChats(context.Background())
	assert.Len(t, sender.questions, 1)
}

func TestProcessDueChatsHonorsChatTimezone(t *testing.T) {
	svc, sender, _, store := testService(t)

	// 14:45 in Kolkata (UTC+5:30) is 09:15 UTC.
	require.NoError(t, store.UpsertDailySettings(context.Background(), 400, true, "14:45", "Asia/Kolkata"))

	svc.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	svc.ProcessDueChats(context.Background())
	assert.Empty(t, sender.questions, "14:45 local has not arrived yet")

	svc.nowFn = func() time.Time {
		return time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)
	}
	svc.ProcessDueChats(context.Background())
	assert.Len(t, sender.questions, 1)
}

func TestCronHandlerRequiresSecret(t *testing.T) {
	svc, _, _, _ := testService(t)

	req := httptest.NewRequest(http.MethodPost, "/cron/daily", nil)
	rec := httptest.NewRecorder()
	svc.CronHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/cron/daily", nil)
	req.Header.Set("X-Cron-Secret", "cron-secret")
	rec = httptest.NewRecorder()
	svc.CronHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sent=1")
}
