package surface

import "unicode/utf8"

const (
	colorBackground = 0x000000
	colorFieldIdle  = 0xffffff
	// 0.9/0.95/1.0 in RGB.
	colorFieldActive = 0xe6f2ff
	colorText        = 0x000000
	colorPlaceholder = 0x808080

	fieldPaddingX = 6
	fieldCharW    = 7
	fieldBaseline = 4

	placeholder = "Click to type..."
)

// fieldPaint is the resolved look of the text field for one frame.
type fieldPaint struct {
	fill  uint32
	fg    uint32
	label string
}

func resolveFieldPaint(v View, fieldWidth int) fieldPaint {
	p := fieldPaint{fill: colorFieldIdle, fg: colorText, label: v.Text}
	if v.Active {
		p.fill = colorFieldActive
	}
	if v.Text == "" {
		p.fg = colorPlaceholder
		p.label = placeholder
	}
	p.label = tailFit(p.label, (fieldWidth-2*fieldPaddingX)/fieldCharW)
	return p
}

// tailFit keeps the last maxChars runes of s so the caret end stays visible,
// and encodes the result as Latin-1 for ImageText8. Runes outside Latin-1
// render as '?'.
func tailFit(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if maxChars > 255 {
		maxChars = 255
	}
	n := utf8.RuneCountInString(s)
	skip := n - maxChars
	out := make([]byte, 0, min(n, maxChars))
	for _, r := range s {
		if skip > 0 {
			skip--
			continue
		}
		if r > 0xff {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return string(out)
}
