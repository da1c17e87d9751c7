package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(_ context.Context, ev Event) error {
	s.logger.Info().
		Str("event_id", ev.ID).
		Str("event", ev.Name).
		Time("occurred_at", ev.OccurredAt).
		Fields(map[string]interface{}(ev.Payload)).
		Msg("domain event")
	return nil
}
