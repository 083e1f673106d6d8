// Package reminder runs the background job that delivers medication
// reminder SMS messages at their scheduled times.
package reminder

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/medivault/medivault/internal/platform/notification"
)

// Due describes one reminder that should fire now.
type Due struct {
	ReminderID string
	Phone      string
	Medicine   string
	Dosage     string
	Time       string // "HH:MM"
}

// Source lists the reminders due at a given wall-clock time.
type Source interface {
	DueAt(ctx context.Context, hhmm string) ([]Due, error)
}

// Worker checks every minute for reminders whose scheduled time matches the
// current minute and sends each one as an SMS.
type Worker struct {
	source    Source
	notifier  *notification.Manager
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
}

func NewWorker(source Source, notifier *notification.Manager, logger zerolog.Logger) *Worker {
	return &Worker{
		source:   source,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins the once-a-minute check. Call Stop to shut the scheduler down.
func (w *Worker) Start() {
	w.scheduler = gocron.NewScheduler(time.Local)

	w.scheduler.Every(1).Minute().Do(func() {
		if err := w.Run(context.Background(), time.Now()); err != nil {
			w.logger.Error().Err(err).Msg("reminder check failed")
		}
	})

	w.scheduler.StartAsync()
	w.logger.Info().Msg("medication reminder worker started")
}

// Stop halts the scheduler. Safe to call when Start was never called.
func (w *Worker) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

// Run sends all reminders due at the given time. Failures on individual
// reminders are logged and do not block the rest of the batch.
func (w *Worker) Run(ctx context.Context, now time.Time) error {
	hhmm := now.Format("15:04")

	due, err := w.source.DueAt(ctx, hhmm)
	if err != nil {
		return err
	}

	for _, d := range due {
		if d.Phone == "" {
			w.logger.Warn().
				Str("reminder_id", d.ReminderID).
				Msg("skipping reminder for patient without phone number")
			continue
		}

		_, err := w.notifier.SendFromTemplate(ctx, "medication-reminder", map[string]string{
			"medicine": d.Medicine,
			"dosage":   d.Dosage,
		}, d.Phone)
		if err != nil {
			w.logger.Error().
				Err(err).
				Str("reminder_id", d.ReminderID).
				Msg("failed to send medication reminder")
			continue
		}

		w.logger.Info().
			Str("reminder_id", d.ReminderID).
			Str("time", d.Time).
			Msg("medication reminder sent")
	}

	return nil
}
