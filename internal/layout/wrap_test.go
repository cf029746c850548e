package layout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func visibleLen(s string) int {
	return utf8.RuneCountInString(strings.TrimRight(s, " \t\n"))
}

func TestWrapShortTextUnchanged(t *testing.T) {
	assert.Equal(t, []string{"Pallet storage"}, Wrap("Pallet storage", 35))
	assert.Equal(t, []string{""}, Wrap("", 35))
}

func TestWrapExactBudgetIsOneLine(t *testing.T) {
	text := strings.Repeat("x", 35)
	assert.Equal(t, []string{text}, Wrap(text, 35))
}

func TestWrapOnePastBudgetHardSplits(t *testing.T) {
	text := strings.Repeat("a", 35) + "b"
	lines := Wrap(text, 35)

	assert.Equal(t, []string{strings.Repeat("a", 35), "b"}, lines)
	assert.Equal(t, text, strings.Join(lines, ""))
}

func TestWrapPrefersWhitespace(t *testing.T) {
	text := "Inbound handling of mixed pallets with shrink wrap removal"
	lines := Wrap(text, 35)

	assert.Equal(t, []string{
		"Inbound handling of mixed pallets ",
		"with shrink wrap removal",
	}, lines)
}

func TestWrapLongTokenInsideSentence(t *testing.T) {
	text := "ref " + strings.Repeat("Z", 40) + " end"
	lines := Wrap(text, 10)

	assert.Equal(t, text, strings.Join(lines, ""))
	for _, l := range lines {
		assert.LessOrEqual(t, visibleLen(l), 10, "line %q", l)
	}
}

func TestWrapReconstructsOriginal(t *testing.T) {
	inputs := []string{
		"Cross dock transfer – 53' trailer – overnight hold",
		"   leading spaces are kept",
		"double  spaces  between  words  should  survive  wrapping",
		strings.Repeat("word ", 30),
		"ünïcödé characters are counted as runes not bytes ünïcödé",
	}

	for _, in := range inputs {
		for _, width := range []int{1, 5, 12, 35} {
			lines := Wrap(in, width)
			assert.Equal(t, in, strings.Join(lines, ""), "width %d", width)
			for _, l := range lines {
				assert.LessOrEqual(t, visibleLen(l), width, "width %d line %q", width, l)
			}
		}
	}
}

func TestWrapDisabledWidth(t *testing.T) {
	text := strings.Repeat("x", 100)
	assert.Equal(t, []string{text}, Wrap(text, 0))
}
