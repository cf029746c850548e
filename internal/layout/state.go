package layout

import "fmt"

// Phase is the section of the invoice currently being written.
type Phase int

const (
	PhaseHeader Phase = iota
	PhaseSummary
	PhaseGroups
	PhaseDocument
	PhaseTotals
)

func (p Phase) String() string {
	switch p {
	case PhaseHeader:
		return "header"
	case PhaseSummary:
		return "summary"
	case PhaseGroups:
		return "groups"
	case PhaseDocument:
		return "document"
	case PhaseTotals:
		return "totals"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// canEnter reports whether the writer may move from one phase to another.
// Phases only move forward, except that finishing a document hands control
// back to the group loop for the next outer group.
func canEnter(from, to Phase) bool {
	if to >= from {
		return true
	}
	return from == PhaseDocument && to == PhaseGroups
}

// State is the explicit layout state threaded through every block writer.
//
// Block writers take a State by value and return the next one. Pages is
// shared between successive states, so a State must not be used again once
// it has been handed to a writer.
type State struct {
	PageNumber int
	Y          float64
	Phase      Phase
	Pages      []Page

	// LowestY is the lowest cursor position reached on any page.
	LowestY float64

	// Truncated counts line items left out in truncate mode.
	Truncated int
}

// NewState returns the state at the top of page one.
func NewState() State {
	return State{
		PageNumber: 1,
		Y:          TopY,
		Phase:      PhaseHeader,
		Pages:      []Page{{Number: 1}},
		LowestY:    TopY,
	}
}

// Down moves the cursor dy points down the page.
func (s State) Down(dy float64) State {
	s.Y -= dy
	if s.Y < s.LowestY {
		s.LowestY = s.Y
	}
	return s
}

// Fits reports whether a block of height h still lands at or above minY.
func (s State) Fits(h, minY float64) bool {
	return s.Y-h >= minY
}

func (s State) emit(c Command) State {
	last := len(s.Pages) - 1
	s.Pages[last].Commands = append(s.Pages[last].Commands, c)
	return s
}

func (s State) enter(p Phase) State {
	if !canEnter(s.Phase, p) {
		panic(phaseError{from: s.Phase, to: p})
	}
	s.Phase = p
	return s
}

func (s State) newPage() State {
	s.PageNumber++
	s.Pages = append(s.Pages, Page{Number: s.PageNumber})
	s.Y = TopY
	return s
}

type phaseError struct {
	from, to Phase
}

func (e phaseError) Error() string {
	return fmt.Sprintf("layout: cannot move from %s back to %s", e.from, e.to)
}
