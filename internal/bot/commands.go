package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Service) handleCommand(ctx context.Context, chatID int64, text string) error {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}

	cmd := normalizeCommand(parts[0])
	args := parts[1:]

	switch cmd {
	case "/start":
		return s.tgClient.SendMessage(ctx, chatID, "Bot active ✅. You'll get scheduled quizzes at the configured time.")
	case "/help":
		return s.tgClient.SendMessage(ctx, chatID, helpText())
	case "/quiz":
		return s.cmdQuiz(ctx, chatID)
	case "/chapters":
		return s.cmdChapters(ctx, chatID)
	case "/stats":
		return s.cmdStats(ctx, chatID)
	case "/daily_on":
		return s.cmdDailyOn(ctx, chatID, args)
	case "/daily_off":
		return s.cmdDailyOff(ctx, chatID)
	case "/daily_time":
		return s.cmdDailyTime(ctx, chatID, args)
	case "/daily_status":
		return s.cmdDailyStatus(ctx, chatID)
	default:
		return s.tgClient.SendMessage(ctx, chatID, "Unknown command. Use /help to see available commands.")
	}
}

func (s *Service) cmdQuiz(ctx context.Context, chatID int64) error {
	if err := s.sendQuizQuestion(ctx, chatID); err != nil {
		s.logger.Error("on-demand question failed", "chat", chatID, "error", err)
		return s.tgClient.SendMessage(ctx, chatID, "Couldn't fetch a question right now, try again later.")
	}
	return nil
}

func (s *Service) cmdChapters(ctx context.Context, chatID int64) error {
	lines := make([]string, 0, len(s.chapters)+1)
	lines = append(lines, "Configured chapters:")
	for _, chapter := range s.chapters {
		lines = append(lines, "• "+chapter)
	}
	return s.tgClient.SendMessage(ctx, chatID, strings.Join(lines, "\n"))
}

func (s *Service) cmdStats(ctx context.Context, chatID int64) error {
	stats, err := s.store.AnswerStats(ctx, chatID)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		return s.tgClient.SendMessage(ctx, chatID, "No answers recorded for this chat yet.")
	}

	msg := fmt.Sprintf("Answers in this chat: %d\nCorrect: %d (%.0f%%)",
		stats.Total, stats.Correct, 100*float64(stats.Correct)/float64(stats.Total))
	return s.tgClient.SendMessage(ctx, chatID, msg)
}

func (s *Service) cmdDailyOn(ctx context.Context, chatID int64, args []string) error {
	settings, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return err
	}

	hhmm, zone := s.scheduleDefaults(settings)
	if len(args) > 0 {
		hhmm, err = normalizeHHMM(args[0])
		if err != nil {
			return s.tgClient.SendMessage(ctx, chatID, "Invalid time. Use 24h HH:MM, e.g. /daily_on 08:30")
		}
	}
	if len(args) > 1 {
		zone, err = normalizeTZ(args[1])
		if err != nil {
			return s.tgClient.SendMessage(ctx, chatID, "Unknown timezone. Use an IANA name, e.g. /daily_on 08:30 Asia/Kolkata")
		}
	}

	if err := s.store.UpsertDailySettings(ctx, chatID, true, hhmm, zone); err != nil {
		return err
	}

	return s.tgClient.SendMessage(ctx, chatID, fmt.Sprintf("Daily quiz is ON at %s %s. Use /daily_off to stop.", hhmm, zone))
}

func (s *Service) cmdDailyOff(ctx context.Context, chatID int64) error {
	settings, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return err
	}

	hhmm, zone := s.scheduleDefaults(settings)
	if err := s.store.UpsertDailySettings(ctx, chatID, false, hhmm, zone); err != nil {
		return err
	}

	return s.tgClient.SendMessage(ctx, chatID, "Daily quiz is OFF. Use /daily_on to re-enable.")
}

func (s *Service) cmdDailyTime(ctx context.Context, chatID int64, args []string) error {
	if len(args) == 0 {
		return s.tgClient.SendMessage(ctx, chatID, "Usage: /daily_time HH:MM [timezone], e.g. /daily_time 21:00 Asia/Kolkata")
	}

	settings, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return err
	}
	_, zone := s.scheduleDefaults(settings)

	hhmm, err := normalizeHHMM(args[0])
	if err != nil {
		return s.tgClient.SendMessage(ctx, chatID, "Invalid time. Use 24h HH:MM, e.g. /daily_time 21:00")
	}
	if len(args) > 1 {
		zone, err = normalizeTZ(args[1])
		if err != nil {
			return s.tgClient.SendMessage(ctx, chatID, "Unknown timezone. Use an IANA name, e.g. /daily_time 21:00 Asia/Kolkata")
		}
	}

	if err := s.store.UpsertDailySettings(ctx, chatID, true, hhmm, zone); err != nil {
		return err
	}

	return s.tgClient.SendMessage(ctx, chatID, fmt.Sprintf("Daily time set to %s %s and the quiz is ON.", hhmm, zone))
}

// scheduleDefaults fills the chat's stored time and zone with the service
// defaults, so an upsert never clobbers a previously chosen timezone.
func (s *Service) scheduleDefaults(settings ChatSettings) (hhmm, zone string) {
	hhmm = settings.DailyTime
	if hhmm == "" {
		hhmm = s.defaultHHMM
	}
	zone = settings.Timezone
	if zone == "" {
		zone = s.defaultTZ
	}
	return hhmm, zone
}

func (s *Service) cmdDailyStatus(ctx context.Context, chatID int64) error {
	settings, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return err
	}

	status := "OFF"
	if settings.DailyEnabled {
		status = "ON"
	}

	hhmm := settings.DailyTime
	if hhmm == "" {
		hhmm = s.defaultHHMM
	}
	zone := settings.Timezone
	if zone == "" {
		zone = s.defaultTZ
	}

	msg := fmt.Sprintf("Daily quiz: %s\nTime: %s\nTimezone: %s", status, hhmm, zone)
	return s.tgClient.SendMessage(ctx, chatID, msg)
}

func normalizeCommand(token string) string {
	if idx := strings.Index(token, "@"); idx >= 0 {
		token = token[:idx]
	}
	return strings.ToLower(token)
}

func normalizeHHMM(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("time is empty")
	}

	for _, layout := range []string{"15:04", "15"} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.Format("15:04"), nil
		}
	}

	return "", fmt.Errorf("invalid time %q", raw)
}

func normalizeTZ(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if _, err := time.LoadLocation(raw); err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", raw, err)
	}
	return raw, nil
}

func helpText() string {
	return strings.TrimSpace(`Commands:
/quiz - Get a quiz question right now
/chapters - List configured question chapters
/stats - Show how this chat has answered so far
/daily_on [HH:MM [timezone]] - Subscribe this chat to a daily quiz question
/daily_off - Unsubscribe from the daily question
/daily_time HH:MM [timezone] - Change the daily time and enable
/daily_status - Show this chat's daily schedule

Scheduled quizzes also go to the configured primary chat. Tap an answer button to see the correct option and an explanation.`)
}
