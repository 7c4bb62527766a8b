package events

import "log/slog"

// LogEmitter writes every event to the structured log, one line per event
// with the record attributes flattened.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e LogEmitter) Emit(event Event) {
	if event == nil {
		return
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	record := event.Record()
	if record == nil {
		return
	}
	args := make([]any, 0, len(record.Attributes)*2)
	for key, value := range record.Attributes {
		args = append(args, key, value)
	}
	logger.Info(record.Type, args...)
}
