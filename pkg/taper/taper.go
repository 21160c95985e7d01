// Package taper computes lane-shift connection plans: given a run of lanes
// at one node-end and a run at another, it derives the merge fans, diverge
// fans and one-to-one band that reconcile the two lane counts without any
// connections crossing.
package taper

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned (wrapped) when a pair of ranges and shifts cannot
// be realized as a taper.
var ErrInvalid = errors.New("invalid taper")

// Range is a half-open run of lane indices [Left, Right).
type Range struct {
	Left, Right int
}

// Count returns the number of lanes in the range.
func (r Range) Count() int { return r.Right - r.Left }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Left, r.Right) }

// Kind classifies a connection inside a plan.
type Kind int

const (
	ClosingLeft Kind = iota
	OpeningLeft
	Unchanging
	ClosingRight
	OpeningRight
)

func (k Kind) String() string {
	switch k {
	case ClosingLeft:
		return "closing-left"
	case OpeningLeft:
		return "opening-left"
	case Unchanging:
		return "unchanging"
	case ClosingRight:
		return "closing-right"
	case OpeningRight:
		return "opening-right"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pair is one lane-to-lane connection of a plan.
type Pair struct {
	Start, End int // lane indices at the start and end node-ends
	Kind       Kind
}

// Plan is a validated taper between two lane ranges.
type Plan struct {
	Start, End Range

	LeftShift, RightShift int

	ClosingLeft, OpeningLeft   int
	ClosingRight, OpeningRight int
	Unchanging                 int
}

// NewPlan validates and decomposes a taper. shiftStart and shiftEnd count
// how many lanes are already opened or closed at the left edge of each side
// relative to the other connections sharing that node-end.
//
// The plan is rejected when either range is empty or when either shift
// magnitude is not strictly below the smaller lane count.
func NewPlan(start, end Range, shiftStart, shiftEnd int) (Plan, error) {
	startCount, endCount := start.Count(), end.Count()
	if startCount < 1 || endCount < 1 {
		return Plan{}, fmt.Errorf("taper: %w: empty lane range (start %s, end %s)", ErrInvalid, start, end)
	}

	leftShift := shiftEnd - shiftStart
	rightShift := endCount - startCount - leftShift

	narrow := min(startCount, endCount)
	if abs(leftShift) >= narrow {
		return Plan{}, fmt.Errorf("taper: %w: left shift %d needs more than %d lanes", ErrInvalid, leftShift, narrow)
	}
	if abs(rightShift) >= narrow {
		return Plan{}, fmt.Errorf("taper: %w: right shift %d needs more than %d lanes", ErrInvalid, rightShift, narrow)
	}

	p := Plan{
		Start:        start,
		End:          end,
		LeftShift:    leftShift,
		RightShift:   rightShift,
		ClosingLeft:  max(0, -leftShift),
		OpeningLeft:  max(0, leftShift),
		ClosingRight: max(0, -rightShift),
		OpeningRight: max(0, rightShift),
	}
	p.Unchanging = (start.Right - p.ClosingRight) - (start.Left + p.ClosingLeft)
	return p, nil
}

// Len returns the number of connections the plan emits.
func (p Plan) Len() int {
	return p.ClosingLeft + p.OpeningLeft + p.Unchanging + p.ClosingRight + p.OpeningRight
}

// Pairs returns the connections in emission order: left-closing fan,
// left-opening fan, unchanging band, right-closing fan, right-opening fan.
// Renderers rely on this order for texture continuity.
func (p Plan) Pairs() []Pair {
	pairs := make([]Pair, 0, p.Len())

	// Closing lanes merge into the first end lane, which also carries the
	// first lane of the band.
	for i := 0; i < p.ClosingLeft; i++ {
		pairs = append(pairs, Pair{Start: p.Start.Left + i, End: p.End.Left, Kind: ClosingLeft})
	}
	// Opening lanes diverge from the first start lane.
	for i := 0; i < p.OpeningLeft; i++ {
		pairs = append(pairs, Pair{Start: p.Start.Left, End: p.End.Left + i, Kind: OpeningLeft})
	}

	s0 := p.Start.Left + p.ClosingLeft
	e0 := p.End.Left + p.OpeningLeft
	for i := 0; i < p.Unchanging; i++ {
		pairs = append(pairs, Pair{Start: s0 + i, End: e0 + i, Kind: Unchanging})
	}

	for i := 0; i < p.ClosingRight; i++ {
		pairs = append(pairs, Pair{Start: p.Start.Right - p.ClosingRight + i, End: p.End.Right - 1, Kind: ClosingRight})
	}
	for i := 0; i < p.OpeningRight; i++ {
		pairs = append(pairs, Pair{Start: p.Start.Right - 1, End: p.End.Right - p.OpeningRight + i, Kind: OpeningRight})
	}
	return pairs
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
