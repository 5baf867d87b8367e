package storage

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore keeps chat settings and answer tallies in process memory. It is
// the default when no Firestore project is configured; state does not survive
// a restart, which is acceptable for single-chat deployments.
type MemoryStore struct {
	mu               sync.Mutex
	chats            map[int64]ChatSettings
	answers          map[int64]map[string]AnswerTally
	defaultDailyTime string
	defaultDailyTZ   string
}

func NewMemoryStore(defaultDailyTime, defaultDailyTZ string) *MemoryStore {
	return &MemoryStore{
		chats:            make(map[int64]ChatSettings),
		answers:          make(map[int64]map[string]AnswerTally),
		defaultDailyTime: defaultDailyTime,
		defaultDailyTZ:   defaultDailyTZ,
	}
}

func (m *MemoryStore) GetChatSettings(_ context.Context, chatID int64) (ChatSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.chats[chatID]; ok {
		return item, nil
	}
	return ChatSettings{
		ChatID:    chatID,
		DailyTime: m.defaultDailyTime,
		Timezone:  m.defaultDailyTZ,
	}, nil
}

func (m *MemoryStore) UpsertDailySettings(_ context.Context, chatID int64, enabled bool, hhmm, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hhmm == "" {
		hhmm = m.defaultDailyTime
	}
	if tz == "" {
		tz = m.defaultDailyTZ
	}

	item := m.chats[chatID]
	item.ChatID = chatID
	item.DailyEnabled = enabled
	item.DailyTime = hhmm
	item.Timezone = tz
	item.UpdatedAt = time.Now().UTC()
	m.chats[chatID] = item
	return nil
}

func (m *MemoryStore) MarkDailySent(_ context.Context, chatID int64, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.chats[chatID]
	item.ChatID = chatID
	item.LastDailySentOn = day
	item.UpdatedAt = time.Now().UTC()
	m.chats[chatID] = item
	return nil
}

func (m *MemoryStore) RecordAnswer(_ context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.answers[chatID]; !ok {
		m.answers[chatID] = make(map[string]AnswerTally)
	}

	key := chapter + ":" + strconv.Itoa(questionID)
	tally := m.answers[chatID][key]
	tally.Chapter = chapter
	tally.QuestionID = questionID
	tally.Attempts++
	if correct {
		tally.CorrectCount++
	}
	tally.LastOption = optionIndex
	tally.LastAnsweredAt = time.Now().UTC()
	m.answers[chatID][key] = tally
	return nil
}

func (m *MemoryStore) AnswerStats(_ context.Context, chatID int64) (AnswerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats AnswerStats
	for _, tally := range m.answers[chatID] {
		stats.Total += tally.Attempts
		stats.Correct += tally.CorrectCount
	}
	return stats, nil
}

func (m *MemoryStore) ListDailyEnabledChats(_ context.Context) ([]ChatSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ChatSettings, 0, len(m.chats))
	for _, item := range m.chats {
		if !item.DailyEnabled {
			continue
		}
		if item.DailyTime == "" {
			item.DailyTime = m.defaultDailyTime
		}
		if item.Timezone == "" {
			item.Timezone = m.defaultDailyTZ
		}
		out = append(out, item)
	}
	return out, nil
}
