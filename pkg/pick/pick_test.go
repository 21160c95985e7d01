package pick_test

import (
	"math"
	"testing"

	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/network"
	"github.com/chazu/lanegraph/pkg/pick"
	"github.com/chazu/lanegraph/pkg/taper"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// quad returns a horizontal rectangle at height z covering
// [x0, x1] x [y0, y1], both triangles tagged tag.
func quad(name string, x0, y0, x1, y1, z float64, tag kernel.Tag) *kernel.Mesh {
	m := kernel.NewMesh(name)
	up := v3.Vec{Z: 1}
	a := m.AddVertex(kernel.Vertex{Position: v3.Vec{X: x0, Y: y0, Z: z}, Normal: up})
	b := m.AddVertex(kernel.Vertex{Position: v3.Vec{X: x1, Y: y0, Z: z}, Normal: up})
	c := m.AddVertex(kernel.Vertex{Position: v3.Vec{X: x1, Y: y1, Z: z}, Normal: up})
	d := m.AddVertex(kernel.Vertex{Position: v3.Vec{X: x0, Y: y1, Z: z}, Normal: up})
	m.AddTriangle(a, b, c, tag)
	m.AddTriangle(a, c, d, tag)
	return m
}

func down(x, y, z float64) kernel.Ray {
	return kernel.Ray{Origin: v3.Vec{X: x, Y: y, Z: z}, Dir: v3.Vec{Z: -1}}
}

func TestNearestAcrossMeshes(t *testing.T) {
	low := quad("low", 0, 0, 1, 1, 0, "low")
	high := quad("high", 0, 0, 1, 1, 2, "high")
	side := quad("side", 5, 5, 6, 6, 3, "side")

	for _, brute := range []bool{false, true} {
		opts := pick.Options{BruteForce: brute}
		res, ok := pick.Nearest(down(0.5, 0.25, 10), []*kernel.Mesh{low, side, high}, opts)
		if !ok {
			t.Fatalf("brute=%v: miss", brute)
		}
		if res.Tag != "high" || res.Mesh != high || math.Abs(res.Distance-8) > 1e-9 {
			t.Errorf("brute=%v: got tag %v distance %v", brute, res.Tag, res.Distance)
		}
		if math.Abs(res.Point.Z-2) > 1e-9 {
			t.Errorf("brute=%v: point %v", brute, res.Point)
		}
	}
}

func TestNearestMisses(t *testing.T) {
	meshes := []*kernel.Mesh{quad("q", 0, 0, 1, 1, 0, 1), kernel.NewMesh("empty"), nil}
	tests := []struct {
		name string
		ray  kernel.Ray
	}{
		{"away", kernel.Ray{Origin: v3.Vec{X: 0.5, Y: 0.5, Z: 1}, Dir: v3.Vec{Z: 1}}},
		{"beside", down(3, 3, 1)},
		{"parallel", kernel.Ray{Origin: v3.Vec{X: -1, Y: 0.5}, Dir: v3.Vec{X: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := pick.Nearest(tt.ray, meshes, pick.Options{}); ok {
				t.Error("hit, want miss")
			}
			if _, ok := pick.Nearest(tt.ray, meshes, pick.Options{BruteForce: true}); ok {
				t.Error("brute force hit, want miss")
			}
		})
	}
	if _, ok := pick.Nearest(down(0, 0, 1), nil, pick.Options{}); ok {
		t.Error("hit with no meshes")
	}
}

func TestNearestTieGoesToEarlierMesh(t *testing.T) {
	first := quad("first", 0, 0, 1, 1, 0, "first")
	second := quad("second", 0, 0, 1, 1, 0, "second")
	res, ok := pick.Nearest(down(0.3, 0.6, 1), []*kernel.Mesh{first, second}, pick.Options{})
	if !ok || res.Tag != "first" {
		t.Errorf("tag = %v, want first", res.Tag)
	}
}

// road is node A at the origin and node B thirty meters ahead, both with
// two 3.5 m lanes, joined lane for lane; node D sits thirty meters behind
// A and a section fills the gap between A's back and D's front.
func road(t *testing.T) (*network.Network, *network.Node, *network.Node, *network.Section) {
	t.Helper()
	n := network.New()
	mk := func(name string, x float64) *network.Node {
		node, err := n.AddNode(name, network.At(v3.Vec{X: x}))
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			if _, err := node.AddLane(float64(i)*3.5, float64(i+1)*3.5, network.DefaultLaneSpec()); err != nil {
				t.Fatal(err)
			}
		}
		return node
	}
	a, b, d := mk("A", 0), mk("B", 30), mk("D", -30)
	full := taper.Range{Left: 0, Right: 2}
	if _, err := n.Connect(a.Front(), full, b.Back(), full, 0, 0); err != nil {
		t.Fatal(err)
	}
	sec, err := n.AddSection(a.Back(), d.Front())
	if err != nil {
		t.Fatal(err)
	}
	return n, a, b, sec
}

func TestPickerResolvesEntities(t *testing.T) {
	n, a, b, sec := road(t)
	a0, _ := a.Lane(0)
	a1, _ := a.Lane(1)
	b0, _ := b.Lane(0)

	for _, brute := range []bool{false, true} {
		p := pick.NewPicker(n, pick.Options{BruteForce: brute})

		// Lateral offsets grow to the right of forward, which is -Y here.
		tgt, ok := p.Pick(down(10, -1.75, 10))
		if !ok || tgt.Kind != pick.KindLaneStrip {
			t.Fatalf("brute=%v: got %v, want lane-strip", brute, tgt.Kind)
		}
		if tgt.LaneStrip.Start() != a0.Front() || tgt.LaneEnd != a0.Front() {
			t.Errorf("brute=%v: picked %s nearer %s", brute, tgt.LaneStrip, tgt.LaneEnd)
		}
		if math.Abs(tgt.Distance-10) > 1e-6 {
			t.Errorf("brute=%v: distance %v", brute, tgt.Distance)
		}

		tgt, ok = p.Pick(down(20, -1.75, 10))
		if !ok || tgt.Kind != pick.KindLaneStrip || tgt.LaneEnd != b0.Back() {
			t.Errorf("brute=%v: far half resolved to %s", brute, tgt.LaneEnd)
		}

		tgt, ok = p.Pick(down(-0.25, -5.25, 10))
		if !ok || tgt.Kind != pick.KindLaneEnd || tgt.LaneEnd != a1.Back() {
			t.Errorf("brute=%v: pad resolved to %v %s", brute, tgt.Kind, tgt.LaneEnd)
		}

		tgt, ok = p.Pick(down(-10, -2, 5))
		if !ok || tgt.Kind != pick.KindSection || tgt.Section != sec {
			t.Errorf("brute=%v: section resolved to %v", brute, tgt.Kind)
		}

		if _, ok := p.Pick(down(10, 20, 10)); ok {
			t.Errorf("brute=%v: hit beside the road", brute)
		}
	}
}

func TestPickerSeesEdits(t *testing.T) {
	n, a, _, _ := road(t)
	p := pick.NewPicker(n, pick.Options{})
	if _, ok := p.Pick(down(10, -1.75, 10)); !ok {
		t.Fatal("miss before edit")
	}
	if err := a.Move(v3.Vec{Y: 100}); err != nil {
		t.Fatal(err)
	}
	tgt, ok := p.Pick(down(-0.25, 98, 10))
	if !ok || tgt.Kind != pick.KindLaneEnd {
		t.Errorf("moved pad not picked: %v", tgt.Kind)
	}
}

func TestBVHMatchesBruteForce(t *testing.T) {
	n, _, _, _ := road(t)
	meshes := n.Meshes()
	for x := -31.0; x <= 31; x += 1.7 {
		for y := -8.0; y <= 1; y += 0.9 {
			r := down(x, y, 10)
			fast, okFast := pick.Nearest(r, meshes, pick.Options{})
			slow, okSlow := pick.Nearest(r, meshes, pick.Options{BruteForce: true})
			if okFast != okSlow {
				t.Fatalf("(%v, %v): bvh hit=%v brute hit=%v", x, y, okFast, okSlow)
			}
			if okFast && math.Abs(fast.Distance-slow.Distance) > 1e-9 {
				t.Errorf("(%v, %v): bvh %v brute %v", x, y, fast.Distance, slow.Distance)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	if pick.KindLaneStrip.String() != "lane-strip" || pick.KindNone.String() != "none" {
		t.Error("unexpected kind names")
	}
}
