package taper

import (
	"errors"
	"testing"
)

func TestNewPlanDecomposition(t *testing.T) {
	tests := []struct {
		name                   string
		start, end             Range
		shiftStart, shiftEnd   int
		cl, ol, unch, cr, or_ int
	}{
		{"equal counts", Range{0, 3}, Range{0, 3}, 0, 0, 0, 0, 3, 0, 0},
		{"close one on the right", Range{0, 4}, Range{0, 3}, 0, 0, 0, 0, 3, 1, 0},
		{"close one on the left", Range{0, 4}, Range{0, 3}, 1, 0, 1, 0, 3, 0, 0},
		{"open one on the left", Range{0, 2}, Range{0, 3}, 0, 1, 0, 1, 2, 0, 0},
		{"open one on the right", Range{0, 2}, Range{0, 3}, 0, 0, 0, 0, 2, 0, 1},
		{"close left open right", Range{0, 3}, Range{0, 3}, 1, 0, 1, 0, 2, 0, 1},
		{"offset ranges", Range{2, 6}, Range{1, 4}, 0, 0, 0, 0, 3, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlan(tt.start, tt.end, tt.shiftStart, tt.shiftEnd)
			if err != nil {
				t.Fatalf("NewPlan: %v", err)
			}
			if p.ClosingLeft != tt.cl || p.OpeningLeft != tt.ol || p.Unchanging != tt.unch ||
				p.ClosingRight != tt.cr || p.OpeningRight != tt.or_ {
				t.Errorf("plan = cl%d ol%d u%d cr%d or%d, want cl%d ol%d u%d cr%d or%d",
					p.ClosingLeft, p.OpeningLeft, p.Unchanging, p.ClosingRight, p.OpeningRight,
					tt.cl, tt.ol, tt.unch, tt.cr, tt.or_)
			}
		})
	}
}

func TestNewPlanRejects(t *testing.T) {
	tests := []struct {
		name                 string
		start, end           Range
		shiftStart, shiftEnd int
	}{
		{"empty start", Range{0, 0}, Range{0, 2}, 0, 0},
		{"empty end", Range{1, 3}, Range{4, 4}, 0, 0},
		{"inverted range", Range{3, 1}, Range{0, 2}, 0, 0},
		{"left shift too large", Range{0, 3}, Range{0, 3}, 0, 3},
		{"right shift consumes narrow side", Range{0, 4}, Range{0, 2}, 0, 0},
		{"single lane cannot shift", Range{0, 1}, Range{0, 2}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.start, tt.end, tt.shiftStart, tt.shiftEnd)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestPairsEmissionOrder(t *testing.T) {
	// Three start lanes to three end lanes, one closing on the left and one
	// opening on the right.
	p, err := NewPlan(Range{0, 3}, Range{0, 3}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []Pair{
		{Start: 0, End: 0, Kind: ClosingLeft},
		{Start: 1, End: 0, Kind: Unchanging},
		{Start: 2, End: 1, Kind: Unchanging},
		{Start: 2, End: 2, Kind: OpeningRight},
	}
	got := p.Pairs()
	if len(got) != len(want) {
		t.Fatalf("got %d pairs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPairsOpeningLeftFan(t *testing.T) {
	p, err := NewPlan(Range{0, 2}, Range{0, 4}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []Pair{
		{Start: 0, End: 0, Kind: OpeningLeft},
		{Start: 0, End: 1, Kind: Unchanging},
		{Start: 1, End: 2, Kind: Unchanging},
		{Start: 1, End: 3, Kind: OpeningRight},
	}
	got := p.Pairs()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestPlanProperties walks every valid combination of small lane counts and
// shifts and checks the count and coverage guarantees.
func TestPlanProperties(t *testing.T) {
	const maxLanes = 7
	valid := 0
	for sc := 1; sc <= maxLanes; sc++ {
		for ec := 1; ec <= maxLanes; ec++ {
			for shiftStart := -maxLanes; shiftStart <= maxLanes; shiftStart++ {
				for shiftEnd := -maxLanes; shiftEnd <= maxLanes; shiftEnd++ {
					start := Range{Left: 1, Right: 1 + sc}
					end := Range{Left: 2, Right: 2 + ec}
					p, err := NewPlan(start, end, shiftStart, shiftEnd)
					if err != nil {
						continue
					}
					valid++
					checkPlan(t, p)
				}
			}
		}
	}
	if valid == 0 {
		t.Fatal("no valid plans enumerated")
	}
}

func checkPlan(t *testing.T, p Plan) {
	t.Helper()
	pairs := p.Pairs()
	want := p.ClosingLeft + p.OpeningLeft + p.Unchanging + p.ClosingRight + p.OpeningRight
	if len(pairs) != want {
		t.Fatalf("%+v: %d pairs, want %d", p, len(pairs), want)
	}
	if p.Unchanging < 1 {
		t.Fatalf("%+v: empty unchanging band", p)
	}

	seenStart := map[int]bool{}
	seenEnd := map[int]bool{}
	seenPair := map[[2]int]bool{}
	for _, pr := range pairs {
		if pr.Start < p.Start.Left || pr.Start >= p.Start.Right {
			t.Fatalf("%+v: start lane %d out of range", p, pr.Start)
		}
		if pr.End < p.End.Left || pr.End >= p.End.Right {
			t.Fatalf("%+v: end lane %d out of range", p, pr.End)
		}
		key := [2]int{pr.Start, pr.End}
		if seenPair[key] {
			t.Fatalf("%+v: duplicate connection %v", p, key)
		}
		seenPair[key] = true
		seenStart[pr.Start] = true
		seenEnd[pr.End] = true
	}
	for i := p.Start.Left; i < p.Start.Right; i++ {
		if !seenStart[i] {
			t.Fatalf("%+v: start lane %d unconnected", p, i)
		}
	}
	for i := p.End.Left; i < p.End.Right; i++ {
		if !seenEnd[i] {
			t.Fatalf("%+v: end lane %d unconnected", p, i)
		}
	}

	// Kinds appear in emission order.
	last := ClosingLeft
	for _, pr := range pairs {
		if pr.Kind < last {
			t.Fatalf("%+v: kind %v emitted after %v", p, pr.Kind, last)
		}
		last = pr.Kind
	}
}
