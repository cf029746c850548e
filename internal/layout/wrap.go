package layout

import "unicode"

// Wrap splits text into lines holding at most width visible characters.
//
// Lines break after a whitespace character when one is available inside the
// budget; a token longer than width is split at the budget. The whitespace
// at a break stays at the end of the line it follows, so joining the result
// with "" gives back text unchanged. Text that already fits is returned as a
// single line. A width below 1 disables wrapping.
func Wrap(text string, width int) []string {
	runes := []rune(text)
	if width < 1 || len(runes) <= width {
		return []string{text}
	}

	var lines []string
	for len(runes) > width {
		cut := width
		for i := width; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i + 1
				break
			}
		}
		lines = append(lines, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
