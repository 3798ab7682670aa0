package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterEmitsFirstThenEveryNth(t *testing.T) {
	var buf bytes.Buffer
	l := NewLimiter(slog.New(slog.NewTextHandler(&buf, nil)), 5)

	var emitted []int
	for i := 1; i <= 12; i++ {
		if l.Warn("probe", "probe failed") {
			emitted = append(emitted, i)
		}
	}

	assert.Equal(t, []int{1, 6, 11}, emitted)
	assert.Equal(t, uint64(12), l.Count("probe"))
	assert.Equal(t, 3, strings.Count(buf.String(), "probe failed"))
	assert.Contains(t, buf.String(), "occurrences=11")
}

func TestLimiterKindsAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLimiter(slog.New(slog.NewTextHandler(&buf, nil)), 3)

	assert.True(t, l.Warn("probe", "a"))
	assert.True(t, l.Warn("clamped", "b"))
	assert.False(t, l.Warn("probe", "a"))
	assert.False(t, l.Warn("clamped", "b"))
	assert.Equal(t, uint64(0), l.Count("unknown"))
}

func TestLimiterDefaultEvery(t *testing.T) {
	l := NewLimiter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), 0)

	count := 0
	for i := 0; i < 2*DefaultEvery; i++ {
		if l.Info("tick", "x") {
			count++
		}
	}
	assert.Equal(t, 2, count)
}
