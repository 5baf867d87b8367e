package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	chatsCollectionName = "chats"
	answersSubcollName  = "answers"
)

type Store struct {
	client           *firestore.Client
	defaultDailyTime string
	defaultDailyTZ   string
}

func NewStore(client *firestore.Client, defaultDailyTime, defaultDailyTZ string) *Store {
	return &Store{
		client:           client,
		defaultDailyTime: defaultDailyTime,
		defaultDailyTZ:   defaultDailyTZ,
	}
}

type ChatSettings struct {
	ChatID          int64     `firestore:"chat_id"`
	DailyEnabled    bool      `firestore:"daily_enabled"`
	DailyTime       string    `firestore:"daily_time"`
	Timezone        string    `firestore:"timezone"`
	LastDailySentOn string    `firestore:"last_daily_sent_on"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

type AnswerTally struct {
	Chapter        string    `firestore:"chapter"`
	QuestionID     int       `firestore:"question_id"`
	Attempts       int       `firestore:"attempts"`
	CorrectCount   int       `firestore:"correct_count"`
	LastOption     int       `firestore:"last_option"`
	LastAnsweredAt time.Time `firestore:"last_answered_at"`
}

type AnswerStats struct {
	Total   int
	Correct int
}

func (s *Store) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error) {
	snap, err := s.chatDoc(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return s.defaultSettings(chatID), nil
		}
		return ChatSettings{}, fmt.Errorf("get chat settings: %w", err)
	}

	var settings ChatSettings
	if err := snap.DataTo(&settings); err != nil {
		return ChatSettings{}, fmt.Errorf("decode chat settings: %w", err)
	}

	if settings.ChatID == 0 {
		settings.ChatID = chatID
	}
	if settings.DailyTime == "" {
		settings.DailyTime = s.defaultDailyTime
	}
	if settings.Timezone == "" {
		settings.Timezone = s.defaultDailyTZ
	}

	return settings, nil
}

func (s *Store) UpsertDailySettings(ctx context.Context, chatID int64, enabled bool, hhmm, tz string) error {
	if hhmm == "" {
		hhmm = s.defaultDailyTime
	}
	if tz == "" {
		tz = s.defaultDailyTZ
	}

	_, err := s.chatDoc(chatID).Set(ctx, map[string]any{
		"chat_id":       chatID,
		"daily_enabled": enabled,
		"daily_time":    hhmm,
		"timezone":      tz,
		"updated_at":    firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("upsert daily settings: %w", err)
	}
	return nil
}

func (s *Store) MarkDailySent(ctx context.Context, chatID int64, day string) error {
	_, err := s.chatDoc(chatID).Set(ctx, map[string]any{
		"chat_id":            chatID,
		"last_daily_sent_on": day,
		"updated_at":         firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("mark daily sent: %w", err)
	}
	return nil
}

// RecordAnswer bumps the per-question tally for the chat. Answers to the same
// question accumulate so /stats reflects attempts, not distinct questions.
func (s *Store) RecordAnswer(ctx context.Context, chatID int64, chapter string, questionID, optionIndex int, correct bool) error {
	if chapter == "" {
		return fmt.Errorf("record answer: chapter is empty")
	}

	correctInc := 0
	if correct {
		correctInc = 1
	}

	docID := chapter + ":" + strconv.Itoa(questionID)
	ref := s.chatDoc(chatID).Collection(answersSubcollName).Doc(docID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Set(ref, map[string]any{
				"chapter":          chapter,
				"question_id":      questionID,
				"attempts":         1,
				"correct_count":    correctInc,
				"last_option":      optionIndex,
				"last_answered_at": firestore.ServerTimestamp,
			})
		}
		if err != nil {
			return err
		}

		return tx.Set(ref, map[string]any{
			"attempts":         firestore.Increment(int64(1)),
			"correct_count":    firestore.Increment(int64(correctInc)),
			"last_option":      optionIndex,
			"last_answered_at": firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

func (s *Store) AnswerStats(ctx context.Context, chatID int64) (AnswerStats, error) {
	iter := s.chatDoc(chatID).Collection(answersSubcollName).Documents(ctx)
	defer iter.Stop()

	var stats AnswerStats
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return AnswerStats{}, fmt.Errorf("list answers: %w", err)
		}

		var tally AnswerTally
		if err := doc.DataTo(&tally); err != nil {
			return AnswerStats{}, fmt.Errorf("decode answer tally: %w", err)
		}
		stats.Total += tally.Attempts
		stats.Correct += tally.CorrectCount
	}

	return stats, nil
}

func (s *Store) ListDailyEnabledChats(ctx context.Context) ([]ChatSettings, error) {
	iter := s.client.Collection(chatsCollectionName).Where("daily_enabled", "==", true).Documents(ctx)
	defer iter.Stop()

	out := make([]ChatSettings, 0, 32)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query daily chats: %w", err)
		}

		var item ChatSettings
		if err := doc.DataTo(&item); err != nil {
			return nil, fmt.Errorf("decode daily chat: %w", err)
		}
		if item.ChatID == 0 {
			parsed, parseErr := strconv.ParseInt(doc.Ref.ID, 10, 64)
			if parseErr == nil {
				item.ChatID = parsed
			}
		}
		if item.ChatID == 0 {
			continue
		}
		if item.DailyTime == "" {
			item.DailyTime = s.defaultDailyTime
		}
		if item.Timezone == "" {
			item.Timezone = s.defaultDailyTZ
		}
		out = append(out, item)
	}

	return out, nil
}

func (s *Store) chatDoc(chatID int64) *firestore.DocumentRef {
	return s.client.Collection(chatsCollectionName).Doc(strconv.FormatInt(chatID, 10))
}

func (s *Store) defaultSettings(chatID int64) ChatSettings {
	return ChatSettings{
		ChatID:       chatID,
		DailyEnabled: false,
		DailyTime:    s.defaultDailyTime,
		Timezone:     s.defaultDailyTZ,
	}
}
