package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"dgnmMarket/internal/model"
)

// LogSink writes each event to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, events []model.Event) error {
	for _, event := range events {
		s.logger.Info("event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Time("time", event.Time),
			zap.Any("payload", event.Payload),
		)
	}
	return nil
}

// MultiSink fans events out to several sinks. Every sink is tried; the
// errors of those that failed are joined.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, events []model.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
