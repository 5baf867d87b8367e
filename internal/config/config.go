package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeRandom     = "random"
	ModeSequential = "sequential"
)

// TokenDelimiter separates the fields of a callback token. Chapter names must
// not contain it, otherwise a token cannot be decoded unambiguously.
const TokenDelimiter = "|"

type Config struct {
	Port          string
	BotToken      string
	ChatID        int64
	WebhookSecret string
	CronSecret    string

	QuestionsPerRun int
	ScheduleHour    int
	ScheduleMinute  int
	Timezone        string
	Mode            string

	Chapters      []string
	QuestionsDir  string
	GitHubRawBase string

	AutoSetWebhook bool
	BotBaseURL     string

	FirestoreProject string
}

// Load builds the configuration from environment variables. Chapters come from
// CHAPTERS when set, otherwise from local question files discovered by the
// caller-supplied discoverFn.
func Load(discoverFn func(dir string) ([]string, error)) (Config, error) {
	questionsPerRun, err := parseIntEnv("QUESTIONS_PER_RUN", 1)
	if err != nil {
		return Config{}, err
	}
	if questionsPerRun < 1 {
		questionsPerRun = 1
	}

	hour, err := parseRangeEnv("SCHEDULE_HOUR", 10, 0, 23)
	if err != nil {
		return Config{}, err
	}
	minute, err := parseRangeEnv("SCHEDULE_MINUTE", 0, 0, 59)
	if err != nil {
		return Config{}, err
	}

	autoSetWebhook, err := parseBoolEnv("AUTO_SET_WEBHOOK", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		BotToken:         strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		WebhookSecret:    strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		CronSecret:       strings.TrimSpace(os.Getenv("CRON_SECRET")),
		QuestionsPerRun:  questionsPerRun,
		ScheduleHour:     hour,
		ScheduleMinute:   minute,
		Timezone:         getEnv("TIMEZONE", "Asia/Kolkata"),
		Mode:             getEnv("MODE", ModeRandom),
		QuestionsDir:     getEnv("QUESTIONS_DIR", "questions"),
		GitHubRawBase:    normalizeBaseURL(os.Getenv("GITHUB_RAW_BASE")),
		AutoSetWebhook:   autoSetWebhook,
		BotBaseURL:       getEnv("BOT_BASE_URL", ""),
		FirestoreProject: strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID")),
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("BOT_TOKEN is required")
	}

	rawChatID := strings.TrimSpace(os.Getenv("CHAT_ID"))
	if rawChatID == "" {
		return Config{}, fmt.Errorf("CHAT_ID is required")
	}
	cfg.ChatID, err = strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CHAT_ID %q: expected integer", rawChatID)
	}

	if cfg.WebhookSecret == "" {
		return Config{}, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	if cfg.Mode != ModeRandom && cfg.Mode != ModeSequential {
		return Config{}, fmt.Errorf("invalid MODE %q: expected %q or %q", cfg.Mode, ModeRandom, ModeSequential)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.Chapters = parseChaptersEnv("CHAPTERS")
	if len(cfg.Chapters) == 0 && discoverFn != nil {
		discovered, err := discoverFn(cfg.QuestionsDir)
		if err != nil {
			return Config{}, fmt.Errorf("discover chapters in %s: %w", cfg.QuestionsDir, err)
		}
		cfg.Chapters = discovered
	}
	if len(cfg.Chapters) == 0 {
		return Config{}, fmt.Errorf("no chapters found: put json files in %s or set CHAPTERS", cfg.QuestionsDir)
	}
	for _, chapter := range cfg.Chapters {
		if strings.Contains(chapter, TokenDelimiter) {
			return Config{}, fmt.Errorf("invalid chapter name %q: must not contain %q", chapter, TokenDelimiter)
		}
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load has already validated it, so
// the fallback only guards direct struct construction in tests.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func parseRangeEnv(key string, fallback, min, max int) (int, error) {
	v, err := parseIntEnv(key, fallback)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, fmt.Errorf("invalid %s: %d is outside [%d, %d]", key, v, min, max)
	}
	return v, nil
}

func parseChaptersEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	out := make([]string, 0)
	for _, token := range strings.Split(raw, ",") {
		chapter := strings.TrimSpace(token)
		if chapter == "" {
			continue
		}
		out = append(out, chapter)
	}
	return out
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.TrimRight(raw, "/") + "/"
}
