package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/events"
)

// RunReleaseTick emits TierReleased once for every tiered shift whose release moment has passed.
// Visibility itself is never changed here; the tick only advances each shift's release marker so
// a re-run is a no-op. Approved and cancelled shifts are marked without an event.
// Returns the number of shifts released.
func RunReleaseTick(ctx context.Context, store db.Store, emitter events.Emitter, logger *zap.Logger, now time.Time) (int, error) {
	logger.Debug("Running release tick", zap.Time("now", now))

	var evts []events.Event
	err := store.WithTx(ctx, func(tx db.Tx) error {
		evts = nil

		due, err := tx.ListDueTieredShifts(ctx, now)
		if err != nil {
			return err
		}

		for _, s := range due {
			if err := tx.MarkReleaseEvaluated(ctx, s.ID, now); err != nil {
				return err
			}
			if s.Status == model.ShiftOpen || s.Status == model.ShiftPending {
				evts = append(evts, events.TierReleased(s, now))
			} else {
				logger.Debug("Skipping release of filled shift", zap.String("id", s.ID), zap.String("status", string(s.Status)))
			}
		}
		return nil
	})
	if err != nil {
		return 0, model.Wrap(model.KindSchedulerTransient, err, "release tick failed")
	}

	if len(evts) > 0 {
		logger.Info("Tiered shifts released", zap.Int("count", len(evts)))
	}

	events.Dispatch(ctx, emitter, logger, evts)
	return len(evts), nil
}

// ReminderWindow positions the reminder tick's search window relative to now
type ReminderWindow struct {
	Lead  time.Duration // how far ahead of the shift start to remind
	Slack time.Duration // half-width of the window around now+Lead
}

// RunReminderTick emits ShiftUnfilledReminder once for every open shift starting within
// [now+Lead-Slack, now+Lead+Slack]. Returns the number of reminders emitted.
func RunReminderTick(ctx context.Context, store db.Store, emitter events.Emitter, logger *zap.Logger, window ReminderWindow, now time.Time) (int, error) {
	from := now.Add(window.Lead - window.Slack).UTC()
	to := now.Add(window.Lead + window.Slack).UTC()

	logger.Debug("Running reminder tick", zap.Time("from", from), zap.Time("to", to))

	var evts []events.Event
	err := store.WithTx(ctx, func(tx db.Tx) error {
		evts = nil

		candidates, err := tx.ListUnremindedOpenShifts(ctx, from.Format(model.DateLayout), to.Format(model.DateLayout))
		if err != nil {
			return err
		}

		for _, s := range candidates {
			startsAt, err := s.StartsAt()
			if err != nil {
				return err
			}
			if startsAt.Before(from) || startsAt.After(to) {
				continue
			}
			if err := tx.MarkReminderSent(ctx, s.ID, now); err != nil {
				return err
			}
			evts = append(evts, events.ShiftUnfilledReminder(s, now))
		}
		return nil
	})
	if err != nil {
		return 0, model.Wrap(model.KindSchedulerTransient, err, "reminder tick failed")
	}

	if len(evts) > 0 {
		logger.Info("Unfilled shift reminders sent", zap.Int("count", len(evts)))
	}

	events.Dispatch(ctx, emitter, logger, evts)
	return len(evts), nil
}
