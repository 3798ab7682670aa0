// Package submit delivers text submitted from the overlay's input field.
package submit

import (
	"context"
	"errors"
	"log/slog"
)

// Sink receives one submitted line.
type Sink interface {
	Submit(ctx context.Context, text string) error
}

// LogSink writes submissions to a logger.
type LogSink struct {
	Logger *slog.Logger
}

// Submit logs text at info level.
func (s LogSink) Submit(ctx context.Context, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "submitted", "text", text, "runes", len([]rune(text)))
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

// Submit calls each sink in order; a failing sink does not stop the rest.
func (f Fanout) Submit(ctx context.Context, text string) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Submit(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
