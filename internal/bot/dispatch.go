package bot

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"telegram-quiz-bot/internal/config"
)

// RunBatch sends n questions to the primary chat, pacing consecutive sends to
// respect Telegram rate limits. A failed send is logged and skipped; partial
// delivery is acceptable. Returns the number of questions actually sent.
func (s *Service) RunBatch(ctx context.Context, n int) int {
	if n < 1 {
		n = 1
	}

	runID := uuid.NewString()
	log := s.logger.With("run", runID)
	log.Info("starting batch", "questions", n, "mode", s.mode)

	sent := 0
	for i := 0; i < n; i++ {
		chapter := s.pickChapter()
		if err := s.sendQuizQuestionFrom(ctx, s.primaryChatID, chapter); err != nil {
			log.Error("send question failed", "chapter", chapter, "error", err)
		} else {
			sent++
		}

		if i < n-1 {
			select {
			case <-time.After(s.pace):
			case <-ctx.Done():
				log.Warn("batch interrupted", "sent", sent, "requested", n)
				return sent
			}
		}
	}

	log.Info("batch complete", "sent", sent, "requested", n)
	return sent
}

// sendQuizQuestion picks a chapter per the configured mode and sends one
// question with its answer keyboard.
func (s *Service) sendQuizQuestion(ctx context.Context, chatID int64) error {
	return s.sendQuizQuestionFrom(ctx, chatID, s.pickChapter())
}

func (s *Service) sendQuizQuestionFrom(ctx context.Context, chatID int64, chapter string) error {
	qs, err := s.questions.Load(ctx, chapter)
	if err != nil {
		return err
	}

	q := pickQuestion(qs)
	msg := formatQuestionMessage(chapter, q)
	if err := s.tgClient.SendQuestionMessage(ctx, chatID, msg, buildKeyboard(chapter, q)); err != nil {
		return err
	}

	s.logger.Info("sent question", "chat", chatID, "chapter", chapter, "id", q.ID)
	return nil
}

// pickChapter selects per the configured mode. Sequential mode currently
// always serves the first configured chapter; a rotating cursor would need
// state the bot deliberately does not keep.
func (s *Service) pickChapter() string {
	if s.mode == config.ModeSequential {
		return s.chapters[0]
	}
	return s.chapters[rand.Intn(len(s.chapters))]
}

func pickQuestion(qs []Question) Question {
	return qs[rand.Intn(len(qs))]
}
