package network

import (
	"image/color"
	"reflect"
	"testing"

	"github.com/chazu/lanegraph/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// world is a small network with two independent connections so tests can
// check that edits on one side leave the other side's caches alone.
type world struct {
	n          *Network
	a, b, c, d *Node
	ab, cd     *Strip
	sec, other *Section
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{n: New()}
	w.a = addNode(t, w.n, "a", v3.Vec{}, 2, 3.5)
	w.b = addNode(t, w.n, "b", v3.Vec{X: 30}, 2, 3.5)
	w.c = addNode(t, w.n, "c", v3.Vec{Y: 50}, 2, 3.5)
	w.d = addNode(t, w.n, "d", v3.Vec{X: 30, Y: 50}, 2, 3.5)
	var err error
	if w.ab, err = w.n.Connect(w.a.Front(), rng(0, 2), w.b.Back(), rng(0, 2), 0, 0); err != nil {
		t.Fatal(err)
	}
	if w.cd, err = w.n.Connect(w.c.Front(), rng(0, 2), w.d.Back(), rng(0, 2), 0, 0); err != nil {
		t.Fatal(err)
	}
	w.sec, _ = w.n.AddSection(w.a.Back(), w.b.Front())
	w.other, _ = w.n.AddSection(w.c.Back(), w.d.Front())
	w.n.Meshes() // warm every cache
	for _, ls := range w.n.LaneStrips() {
		ls.Mesh()
	}
	return w
}

// staleSet names every entity whose cache is currently stale.
func (w *world) staleSet() map[string]bool {
	out := make(map[string]bool)
	for _, node := range w.n.Nodes() {
		if node.Stale() {
			out["node "+node.Name()] = true
		}
	}
	for _, s := range w.n.Strips() {
		if s.Stale() {
			out["strip "+s.String()] = true
		}
	}
	for _, ls := range w.n.LaneStrips() {
		if ls.Stale() {
			out["lane-strip "+ls.String()] = true
		}
	}
	for _, sec := range w.n.Sections() {
		if sec.Stale() {
			out[sec.String()] = true
		}
	}
	return out
}

func names(items ...string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}

func TestWarmWorldHasNoStaleCaches(t *testing.T) {
	w := newWorld(t)
	if got := w.staleSet(); len(got) != 0 {
		t.Fatalf("stale after warm-up: %v", got)
	}
}

func TestInvalidationScope(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, w *world)
		want   func(w *world) map[string]bool
	}{
		{
			name: "node pose",
			mutate: func(t *testing.T, w *world) {
				if err := w.a.Move(v3.Vec{Y: 1}); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				ls := w.ab.LaneStrips()
				return names("node a", "strip "+w.ab.String(),
					"lane-strip "+ls[0].String(), "lane-strip "+ls[1].String(), w.sec.String())
			},
		},
		{
			name: "lane add",
			mutate: func(t *testing.T, w *world) {
				if _, err := w.a.AddLane(7, 10.5, DefaultLaneSpec()); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names("node a", w.sec.String())
			},
		},
		{
			name: "lane spec",
			mutate: func(t *testing.T, w *world) {
				s := DefaultLaneSpec()
				s.Color = color.NRGBA{G: 255, A: 255}
				if err := lane(t, w.a, 0).SetSpec(s); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names("node a", "strip "+w.ab.String(), "lane-strip "+w.ab.LaneStrips()[0].String())
			},
		},
		{
			name: "lane offsets",
			mutate: func(t *testing.T, w *world) {
				if err := lane(t, w.b, 1).SetOffsets(3.5, 8); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names("node b", "strip "+w.ab.String(), "lane-strip "+w.ab.LaneStrips()[1].String(), w.sec.String())
			},
		},
		{
			name: "lane-strip spec",
			mutate: func(t *testing.T, w *world) {
				if err := w.cd.LaneStrips()[0].SetSpec(LaneSpec{Color: color.NRGBA{B: 255, A: 255}}); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names("strip "+w.cd.String(), "lane-strip "+w.cd.LaneStrips()[0].String())
			},
		},
		{
			name: "lane-strip endpoint",
			mutate: func(t *testing.T, w *world) {
				ls := w.cd.LaneStrips()[0]
				if err := ls.Destroy(); err != nil {
					t.Fatal(err)
				}
				keep := w.cd.LaneStrips()[0]
				if err := keep.SetEnd(lane(t, w.d, 0).Back()); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names("strip "+w.cd.String(), "lane-strip "+w.cd.LaneStrips()[0].String())
			},
		},
		{
			name: "section membership",
			mutate: func(t *testing.T, w *world) {
				if err := w.other.Remove(w.d.Front()); err != nil {
					t.Fatal(err)
				}
			},
			want: func(w *world) map[string]bool {
				return names(w.other.String())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			tt.mutate(t, w)
			got, want := w.staleSet(), tt.want(w)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("stale = %v\nwant  %v", got, want)
			}
		})
	}
}

func TestLaneSpecChangeRebuildsDifferentMesh(t *testing.T) {
	w := newWorld(t)
	l := lane(t, w.a, 0)
	ls := l.Connections()[0]
	oldNode, oldLS := w.a.Mesh(), ls.Mesh()
	oldNodeColors := append([]float32(nil), oldNode.Colors...)
	oldLSColors := append([]float32(nil), oldLS.Colors...)

	s := l.Spec()
	s.Color = color.NRGBA{R: 250, G: 10, B: 10, A: 255}
	if err := l.SetSpec(s); err != nil {
		t.Fatal(err)
	}

	newNode, newLS := w.a.Mesh(), ls.Mesh()
	if newNode == oldNode || newLS == oldLS {
		t.Fatal("meshes were not rebuilt")
	}
	if reflect.DeepEqual(newNode.Colors, oldNodeColors) {
		t.Error("node mesh unchanged after spec change")
	}
	if reflect.DeepEqual(newLS.Colors, oldLSColors) {
		t.Error("lane-strip mesh unchanged after spec change")
	}
	if newLS.Colors[0] < 0.98 {
		t.Errorf("lane-strip start color red = %v, want the new spec color", newLS.Colors[0])
	}

	// Setting the same spec again is not a change.
	if err := l.SetSpec(s); err != nil {
		t.Fatal(err)
	}
	if w.a.Stale() || ls.Stale() {
		t.Error("no-op SetSpec invalidated caches")
	}
}

func TestManyEditsOneRebuild(t *testing.T) {
	w := newWorld(t)
	built := make(map[kernel.Source]int)
	w.n.Subscribe(func(e Event) {
		if e.Kind != MeshBuilt {
			return
		}
		switch {
		case e.Node != nil:
			built[e.Node]++
		case e.Strip != nil:
			built[e.Strip]++
		case e.LaneStrip != nil:
			built[e.LaneStrip]++
		case e.Section != nil:
			built[e.Section]++
		}
	})

	for i := 0; i < 10; i++ {
		if err := w.a.Move(v3.Vec{X: 0.1}); err != nil {
			t.Fatal(err)
		}
	}
	if len(built) != 0 {
		t.Fatalf("edits rebuilt eagerly: %v", built)
	}

	w.n.Meshes()
	if built[w.a] != 1 || built[w.ab] != 1 || built[w.sec] != 1 {
		t.Errorf("rebuild counts node=%d strip=%d section=%d, want 1 each", built[w.a], built[w.ab], built[w.sec])
	}
	for _, ls := range w.ab.LaneStrips() {
		if built[ls] != 1 {
			t.Errorf("lane-strip %s rebuilt %d times", ls, built[ls])
		}
	}
	if built[w.b] != 0 || built[w.cd] != 0 || built[w.other] != 0 {
		t.Error("uninvolved entities rebuilt")
	}

	w.n.Meshes()
	if built[w.a] != 1 {
		t.Error("second read rebuilt a fresh mesh")
	}
}

func TestStripMeshCarriesLaneStripTags(t *testing.T) {
	w := newWorld(t)
	m := w.ab.Mesh()
	lss := w.ab.LaneStrips()
	per := lss[0].Mesh().TriangleCount()
	if m.TriangleCount() != per*len(lss) {
		t.Fatalf("strip mesh has %d triangles, want %d", m.TriangleCount(), per*len(lss))
	}
	if m.Tag(0) != lss[0] || m.Tag(per) != lss[1] {
		t.Errorf("tags = %v, %v", m.Tag(0), m.Tag(per))
	}
}

func TestNodeMeshTagsLaneEnds(t *testing.T) {
	w := newWorld(t)
	m := w.a.Mesh()
	l0 := lane(t, w.a, 0)
	if m.TriangleCount() != 8 {
		t.Fatalf("triangles = %d, want 8", m.TriangleCount())
	}
	if m.Tag(0) != l0.Front() || m.Tag(2) != l0.Back() {
		t.Errorf("tags = %v, %v", m.Tag(0), m.Tag(2))
	}
}

func TestInvalidateAll(t *testing.T) {
	w := newWorld(t)
	w.n.Invalidate()
	if got := w.staleSet(); len(got) != 4+2+4+2 {
		t.Errorf("stale set has %d entries, want 12: %v", len(got), got)
	}
}
