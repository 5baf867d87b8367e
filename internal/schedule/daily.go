package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Daily fires job once per day at hour:minute in loc. It replaces an external
// cron: the loop waits on a timer for the next occurrence, runs the job, and
// repeats until ctx is cancelled.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location
	logger *slog.Logger
	job    func(context.Context)
	nowFn  func() time.Time
}

func NewDaily(hour, minute int, loc *time.Location, logger *slog.Logger, job func(context.Context)) *Daily {
	return &Daily{
		hour:   hour,
		minute: minute,
		loc:    loc,
		logger: logger,
		job:    job,
		nowFn:  time.Now,
	}
}

func (d *Daily) Run(ctx context.Context) {
	d.logger.Info("daily schedule set", "at", timeLabel(d.hour, d.minute), "tz", d.loc.String())

	for {
		now := d.nowFn().In(d.loc)
		next := nextOccurrence(now, d.hour, d.minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			d.job(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextOccurrence returns the next hour:minute strictly after now, rolling to
// tomorrow when today's slot has already passed.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Every runs job at a fixed interval until ctx is cancelled. The first run
// happens after one interval, not immediately.
func Every(ctx context.Context, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func timeLabel(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}
