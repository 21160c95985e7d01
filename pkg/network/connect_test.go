package network

import (
	"errors"
	"testing"

	"github.com/chazu/lanegraph/pkg/taper"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func rng(l, r int) taper.Range { return taper.Range{Left: l, Right: r} }

type idxPair struct{ start, end int }

func indexPairs(s *Strip) []idxPair {
	var out []idxPair
	for _, ls := range s.LaneStrips() {
		out = append(out, idxPair{ls.Start().Index(), ls.End().Index()})
	}
	return out
}

// TestConnectFourToTwo is the end-to-end scenario: A has 4 lanes over
// offsets 0..14, B has 2 lanes over 0..7.
//
// With no left shift (shiftStart == shiftEnd) the right edge must absorb
// the whole difference: rightShift = 2 - 4 - 0 = -2, and |-2| is not below
// min(4, 2) = 2, so the taper is rejected and the network is untouched.
//
// Moving one lane of the difference to the left edge (shiftStart = 1,
// shiftEnd = 0) gives leftShift = -1 and rightShift = -1: one closing lane
// on each side, no opening lanes, and an unchanging band of
// (4 - 1) - (0 + 1) = 2 lanes. Emission order is closing-left, band,
// closing-right.
func TestConnectFourToTwo(t *testing.T) {
	n, a, b := fixture(t)

	_, err := n.Connect(a.Front(), rng(0, 4), b.Back(), rng(0, 2), 0, 0)
	if !errors.Is(err, ErrInvalidTaper) || !errors.Is(err, taper.ErrInvalid) {
		t.Fatalf("leftShift 0: err = %v, want ErrInvalidTaper", err)
	}
	if len(n.Strips()) != 0 || len(lane(t, a, 0).Connections()) != 0 {
		t.Fatal("rejected connect modified the network")
	}

	plan, err := n.PlanConnection(a.Front(), rng(0, 4), b.Back(), rng(0, 2), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if plan.ClosingLeft != 1 || plan.OpeningLeft != 0 || plan.ClosingRight != 1 ||
		plan.OpeningRight != 0 || plan.Unchanging != 2 {
		t.Fatalf("plan = %+v", plan)
	}

	s, err := n.Connect(a.Front(), rng(0, 4), b.Back(), rng(0, 2), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []idxPair{{0, 0}, {1, 0}, {2, 1}, {3, 1}}
	got := indexPairs(s)
	if len(got) != len(want) {
		t.Fatalf("pairs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pairs = %v, want %v", got, want)
		}
	}

	// Every lane on both sides is connected.
	for _, l := range a.Lanes() {
		if len(l.Front().Connections()) == 0 {
			t.Errorf("A lane %d left unconnected", l.Index())
		}
	}
	for _, l := range b.Lanes() {
		if len(l.Back().Connections()) != 2 {
			t.Errorf("B lane %d has %d connections, want 2", l.Index(), len(l.Back().Connections()))
		}
	}

	for _, ls := range s.LaneStrips() {
		if ls.Start().NodeEnd() != a.Front() || ls.End().NodeEnd() != b.Back() {
			t.Errorf("lane-strip %s has the wrong orientation", ls)
		}
	}
	mustNoErrors(t, n)
}

func TestConnectRejectsDuplicatesAtomically(t *testing.T) {
	n, a, b := fixture(t)
	s, err := n.Connect(a.Front(), rng(0, 2), b.Back(), rng(0, 2), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// A second taper into the same strip with no overlapping pairs.
	_, err = n.Connect(a.Front(), rng(1, 4), b.Back(), rng(0, 2), 1, 0)
	if err != nil {
		t.Fatalf("non-overlapping connect: %v", err)
	}
	before := s.Len()
	_, err = n.Connect(a.Front(), rng(0, 2), b.Back(), rng(0, 2), 0, 0)
	if !errors.Is(err, ErrDuplicateLaneStrip) {
		t.Fatalf("err = %v, want ErrDuplicateLaneStrip", err)
	}
	if s.Len() != before {
		t.Errorf("rejected connect changed the strip: %d -> %d", before, s.Len())
	}
}

func TestConnectValidation(t *testing.T) {
	n, a, b := fixture(t)
	other := New()
	foreign, _ := other.AddNode("x", At(v3.Vec{}))

	tests := []struct {
		name       string
		start, end NodeEnd
		sr, er     taper.Range
		shiftS, sE int
		want       error
	}{
		{"self", a.Front(), a.Front(), rng(0, 2), rng(2, 4), 0, 0, ErrSelfConnection},
		{"start out of range", a.Front(), b.Back(), rng(0, 5), rng(0, 2), 0, 0, ErrIndexOutOfRange},
		{"negative", a.Front(), b.Back(), rng(-1, 1), rng(0, 2), 0, 0, ErrIndexOutOfRange},
		{"end out of range", a.Front(), b.Back(), rng(0, 2), rng(1, 3), 0, 0, ErrIndexOutOfRange},
		{"empty", a.Front(), b.Back(), rng(1, 1), rng(0, 2), 0, 0, ErrInvalidTaper},
		{"shift too wide", a.Front(), b.Back(), rng(0, 2), rng(0, 2), 0, 2, ErrInvalidTaper},
		{"foreign", a.Front(), foreign.Back(), rng(0, 1), rng(0, 1), 0, 0, ErrForeignEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := n.Connect(tt.start, tt.sr, tt.end, tt.er, tt.shiftS, tt.sE); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(n.Strips()) != 0 {
		t.Error("rejected connects created strips")
	}
}

func TestConnectOpeningFan(t *testing.T) {
	n, a, b := fixture(t)
	// Two lanes widening to four: one opens on each side.
	s, err := n.Connect(b.Front(), rng(0, 2), a.Back(), rng(0, 4), 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []idxPair{{0, 0}, {0, 1}, {1, 2}, {1, 3}}
	got := indexPairs(s)
	if len(got) != len(want) {
		t.Fatalf("pairs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pairs = %v, want %v", got, want)
		}
	}
}
