// =============================================================================
// Charges to Invoice - PDF Writer
// =============================================================================
//
// This module turns laid out pages into PDF bytes with gofpdf.
//
// The layout engine works with a bottom-left origin (y grows up the page);
// gofpdf uses a top-left origin. All conversions happen here.
//
// =============================================================================

package pdfwriter

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ginjaninja78/charges-to-invoice/internal/layout"
)

// Metadata is stored in the PDF document information dictionary.
type Metadata struct {
	Title     string
	Author    string
	Creator   string
	CreatedAt time.Time
}

// Writer renders pages to PDF.
type Writer struct {
	meta     Metadata
	compress bool
}

// New creates a Writer. Output is compressed.
func New(meta Metadata) *Writer {
	return &Writer{meta: meta, compress: true}
}

// WithCompression toggles stream compression. Uncompressed output is
// easier to inspect in tests.
func (w *Writer) WithCompression(on bool) *Writer {
	w.compress = on
	return w
}

// Render writes pages as a single PDF document to out.
func (w *Writer) Render(pages []layout.Page, out io.Writer) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to render")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCompression(w.compress)
	if w.meta.Title != "" {
		pdf.SetTitle(w.meta.Title, true)
	}
	if w.meta.Author != "" {
		pdf.SetAuthor(w.meta.Author, true)
	}
	if w.meta.Creator != "" {
		pdf.SetCreator(w.meta.Creator, true)
	}
	if !w.meta.CreatedAt.IsZero() {
		pdf.SetCreationDate(w.meta.CreatedAt)
	}

	// Core fonts are cp1252; the translator maps characters such as the
	// en dash used in rollup lines.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range pages {
		pdf.AddPage()
		for _, cmd := range page.Commands {
			if err := drawCommand(pdf, tr, cmd); err != nil {
				return fmt.Errorf("page %d: %w", page.Number, err)
			}
			if pdf.Err() {
				return fmt.Errorf("page %d: %w", page.Number, pdf.Error())
			}
		}
	}

	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// RenderBytes is Render into memory.
func (w *Writer) RenderBytes(pages []layout.Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Render(pages, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawCommand(pdf *gofpdf.Fpdf, tr func(string) string, cmd layout.Command) error {
	switch cmd.Kind {
	case layout.KindText:
		setFont(pdf, cmd.Font)
		text := tr(clean(cmd.Text))
		x := cmd.X
		if cmd.Align == layout.AlignRight {
			x -= pdf.GetStringWidth(text)
		}
		pdf.Text(x, flipY(cmd.Y), text)

	case layout.KindRow:
		setFont(pdf, cmd.Font)
		for _, cell := range cmd.Cells {
			pdf.Text(cell.X, flipY(cmd.Y), tr(clean(cell.Text)))
		}

	case layout.KindRect:
		gray := int(cmd.StrokeGray * 255)
		pdf.SetDrawColor(gray, gray, gray)
		pdf.SetLineWidth(cmd.LineWidth)
		pdf.Rect(cmd.X, flipY(cmd.Y+cmd.Height), cmd.Width, cmd.Height, "D")
		pdf.SetDrawColor(0, 0, 0)

	case layout.KindImage:
		pdf.ImageOptions(cmd.Path, cmd.X, flipY(cmd.Y+cmd.Height), cmd.Width, cmd.Height,
			false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")

	default:
		return fmt.Errorf("unknown draw command %q", cmd.Kind)
	}
	return nil
}

func setFont(pdf *gofpdf.Fpdf, f layout.Font) {
	family := f.Family
	if family == "" {
		family = "Helvetica"
	}
	pdf.SetFont(family, f.Style, f.Size)
}

func flipY(y float64) float64 {
	return layout.PageHeight - y
}

var controlReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func clean(s string) string {
	return controlReplacer.Replace(s)
}
