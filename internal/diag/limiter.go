// Package diag rate-limits repetitive diagnostics from the background loops.
package diag

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultEvery is the default emission period per condition kind.
const DefaultEvery = 50

// Limiter emits the first occurrence of each condition kind and then one in
// every N, annotating each emitted line with the running count.
type Limiter struct {
	logger *slog.Logger

	mu     sync.Mutex
	every  uint64
	counts map[string]uint64
}

// NewLimiter creates a limiter. every <= 0 selects DefaultEvery.
func NewLimiter(logger *slog.Logger, every int) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{logger: logger, counts: make(map[string]uint64)}
	l.SetEvery(every)
	return l
}

// SetEvery changes the period. Counts are kept.
func (l *Limiter) SetEvery(every int) {
	if every <= 0 {
		every = DefaultEvery
	}
	l.mu.Lock()
	l.every = uint64(every)
	l.mu.Unlock()
}

// Warn records one occurrence of kind and logs msg at warn level when the
// occurrence is due. It reports whether a line was emitted.
func (l *Limiter) Warn(kind, msg string, args ...any) bool {
	return l.report(slog.LevelWarn, kind, msg, args)
}

// Info is Warn at info level.
func (l *Limiter) Info(kind, msg string, args ...any) bool {
	return l.report(slog.LevelInfo, kind, msg, args)
}

func (l *Limiter) report(level slog.Level, kind, msg string, args []any) bool {
	l.mu.Lock()
	l.counts[kind]++
	n := l.counts[kind]
	due := (n-1)%l.every == 0
	l.mu.Unlock()

	if !due {
		return false
	}
	l.logger.Log(context.Background(), level, msg, append(args, "kind", kind, "occurrences", n)...)
	return true
}

// Count returns how many times kind has been reported.
func (l *Limiter) Count(kind string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[kind]
}
