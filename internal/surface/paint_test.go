package surface

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFieldPaintPlaceholder(t *testing.T) {
	p := resolveFieldPaint(View{}, 250)
	assert.Equal(t, placeholder, p.label)
	assert.Equal(t, uint32(colorPlaceholder), p.fg)
	assert.Equal(t, uint32(colorFieldIdle), p.fill)
}

func TestResolveFieldPaintActive(t *testing.T) {
	p := resolveFieldPaint(View{Active: true, Text: "hello"}, 250)
	assert.Equal(t, "hello", p.label)
	assert.Equal(t, uint32(colorText), p.fg)
	assert.Equal(t, uint32(colorFieldActive), p.fill)
}

func TestTailFitKeepsEnd(t *testing.T) {
	assert.Equal(t, "cdef", tailFit("abcdef", 4))
	assert.Equal(t, "abc", tailFit("abc", 10))
	assert.Equal(t, "", tailFit("abc", 0))
	assert.Equal(t, "caf\xe9", tailFit("café", 10))
	assert.Equal(t, "a?", tailFit("a€", 10))
	assert.Len(t, tailFit(strings.Repeat("x", 400), 1000), 255)
}
