// Package layout places the invoice onto fixed-size pages. It produces
// positioned draw commands only; turning them into PDF bytes is the job of a
// rendering backend (see internal/pdfwriter).
//
// Coordinates are PDF points with the origin at the bottom-left corner of a
// US Letter page, so the vertical cursor decreases as content is added.
package layout

// Page geometry, in points.
const (
	PageWidth  = 612.0
	PageHeight = 792.0

	LeftX  = 50.0
	RightX = PageWidth - 50.0
	TopY   = PageHeight - 50.0

	FooterY = 50.0

	// BoxX and BoxWidth frame each document block.
	BoxX     = 45.0
	BoxWidth = PageWidth - 90.0
)

// Font is a core PDF font.
type Font struct {
	Family string
	Style  string // "" or "B"
	Size   float64
}

// Regular returns Helvetica at size.
func Regular(size float64) Font { return Font{Family: "Helvetica", Size: size} }

// Bold returns Helvetica Bold at size.
func Bold(size float64) Font { return Font{Family: "Helvetica", Style: "B", Size: size} }

// Align controls how X is interpreted for text.
type Align int

const (
	// AlignLeft draws text starting at X.
	AlignLeft Align = iota
	// AlignRight draws text ending at X.
	AlignRight
)

// Kind is the type of a draw command.
type Kind int

const (
	KindText Kind = iota
	KindRow
	KindRect
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRow:
		return "row"
	case KindRect:
		return "rect"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Cell is one column of a table row.
type Cell struct {
	X    float64
	Text string
}

// Command is a single positioned drawing instruction.
//
// For text and rows Y is the baseline. For rectangles and images (X, Y) is
// the lower-left corner.
type Command struct {
	Kind  Kind
	X, Y  float64
	Text  string
	Align Align
	Font  Font

	// Cells is set for KindRow.
	Cells []Cell

	// Width and Height are set for KindRect and KindImage.
	Width, Height float64

	// StrokeGray (0 black .. 1 white) and LineWidth style a rectangle.
	StrokeGray float64
	LineWidth  float64

	// Path is the image file for KindImage.
	Path string
}

// Page is one output page.
type Page struct {
	Number   int
	Commands []Command
}

// Texts returns the text of every text command and row cell on the page, in
// draw order. Handy for assertions and plain-text previews.
func (p Page) Texts() []string {
	var out []string
	for _, c := range p.Commands {
		switch c.Kind {
		case KindText:
			out = append(out, c.Text)
		case KindRow:
			for _, cell := range c.Cells {
				out = append(out, cell.Text)
			}
		}
	}
	return out
}
