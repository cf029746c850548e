package pdfwriter

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/charges-to-invoice/internal/layout"
)

func samplePages() []layout.Page {
	return []layout.Page{
		{
			Number: 1,
			Commands: []layout.Command{
				{Kind: layout.KindText, X: 50, Y: 700, Text: "18 Wheels Logistics", Font: layout.Regular(10)},
				{Kind: layout.KindText, X: layout.RightX, Y: 680, Text: "Subtotal: $1.00", Align: layout.AlignRight, Font: layout.Bold(9)},
				{Kind: layout.KindRow, Y: 660, Font: layout.Regular(9), Cells: []layout.Cell{
					{X: 50, Text: "HAND"},
					{X: 120, Text: "Handling\twith tab"},
				}},
				{Kind: layout.KindRect, X: layout.BoxX, Y: 600, Width: layout.BoxWidth, Height: 80, StrokeGray: 0.9, LineWidth: 0.5},
			},
		},
		{
			Number: 2,
			Commands: []layout.Command{
				{Kind: layout.KindText, X: 50, Y: 50, Text: "STOR – Storage – 2 EA – $3.00", Font: layout.Regular(8)},
			},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	w := New(Metadata{Title: "Invoice INV-1", Creator: "invoicegen", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)})

	out, err := w.RenderBytes(samplePages())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestRenderUncompressedContainsText(t *testing.T) {
	w := New(Metadata{}).WithCompression(false)

	out, err := w.RenderBytes(samplePages())
	require.NoError(t, err)
	assert.Contains(t, string(out), "Subtotal: $1.00")
	assert.Contains(t, string(out), "Handling with tab")
}

func TestRenderRejectsEmptyDocument(t *testing.T) {
	_, err := New(Metadata{}).RenderBytes(nil)
	assert.Error(t, err)
}

func TestRenderReportsMissingImage(t *testing.T) {
	pages := []layout.Page{{
		Number: 1,
		Commands: []layout.Command{
			{Kind: layout.KindImage, X: 50, Y: 650, Width: 120, Height: 60, Path: filepath.Join(t.TempDir(), "missing.png")},
		},
	}}

	_, err := New(Metadata{}).RenderBytes(pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}

func TestRenderRejectsUnknownCommand(t *testing.T) {
	pages := []layout.Page{{Number: 1, Commands: []layout.Command{{Kind: layout.Kind(42)}}}}

	_, err := New(Metadata{}).RenderBytes(pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown draw command")
}

func TestFlipY(t *testing.T) {
	assert.Equal(t, 92.0, flipY(700))
	assert.Equal(t, layout.PageHeight, flipY(0))
}
