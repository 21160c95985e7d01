package kernel

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestBVHQuadCenterHit(t *testing.T) {
	m := unitQuad()
	// Aim slightly off the shared diagonal so the owning triangle is known.
	r := Ray{Origin: v3.Vec{X: 0.6, Y: 0.4, Z: 5}, Dir: v3.Vec{Z: -1}}

	hit, ok := m.Intersect(r)
	if !ok {
		t.Fatal("ray at quad center missed")
	}
	if math.Abs(hit.Distance-5) > 1e-6 {
		t.Errorf("distance = %v, want 5", hit.Distance)
	}
	if hit.Tag != "lower" {
		t.Errorf("tag = %v, want lower", hit.Tag)
	}
	if math.Abs(hit.Point.Z) > 1e-6 {
		t.Errorf("hit point %v not on the quad plane", hit.Point)
	}
}

func TestBVHMissIsConstantTime(t *testing.T) {
	m := gridMesh(32)
	b := m.BVH()

	var st queryStats
	_, ok := b.intersect(Ray{Origin: v3.Vec{X: 100, Y: 100, Z: 5}, Dir: v3.Vec{Z: -1}}, &st)
	if ok {
		t.Fatal("ray outside the bounds hit")
	}
	if st.trianglesTested != 0 {
		t.Errorf("miss tested %d triangles, want 0", st.trianglesTested)
	}
	if st.nodesVisited != 1 {
		t.Errorf("miss visited %d nodes, want 1", st.nodesVisited)
	}
}

func TestBVHPrunes(t *testing.T) {
	m := gridMesh(32)
	b := m.BVH()

	var st queryStats
	hit, ok := b.intersect(Ray{Origin: v3.Vec{X: 10.3, Y: 20.6, Z: 3}, Dir: v3.Vec{Z: -1}}, &st)
	if !ok {
		t.Fatal("ray over the grid missed")
	}
	if math.Abs(hit.Distance-3) > 1e-6 {
		t.Errorf("distance = %v, want 3", hit.Distance)
	}
	if st.trianglesTested >= m.TriangleCount()/4 {
		t.Errorf("tested %d of %d triangles; hierarchy is not pruning", st.trianglesTested, m.TriangleCount())
	}
}

func TestBVHMatchesLinearScan(t *testing.T) {
	m := gridMesh(12)
	// Lift every other vertex so the surface is not planar.
	for i := 2; i < len(m.Vertices); i += 6 {
		m.Vertices[i] = 0.5
	}
	m.dirty = true

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		r := Ray{
			Origin: v3.Vec{X: rng.Float64()*14 - 1, Y: rng.Float64()*14 - 1, Z: 4},
			Dir:    v3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: -1},
		}
		got, okGot := m.Intersect(r)
		want, okWant := m.IntersectLinear(r)
		if okGot != okWant {
			t.Fatalf("ray %d: bvh hit=%v linear hit=%v", i, okGot, okWant)
		}
		if okGot && math.Abs(got.Distance-want.Distance) > 1e-9 {
			t.Fatalf("ray %d: bvh distance %v, linear %v", i, got.Distance, want.Distance)
		}
	}
}

func TestBVHEmptyMesh(t *testing.T) {
	m := NewMesh("empty")
	if _, ok := m.Intersect(Ray{Dir: v3.Vec{Z: -1}}); ok {
		t.Error("empty mesh reported a hit")
	}
}

func TestIntersectBox(t *testing.T) {
	m := unitQuad()
	box := m.Bounds()
	if _, ok := IntersectBox(Ray{Origin: v3.Vec{X: 2, Y: 2, Z: 1}, Dir: v3.Vec{Z: -1}}, box); ok {
		t.Error("ray beside the box reported entry")
	}
	d, ok := IntersectBox(Ray{Origin: v3.Vec{X: 0.5, Y: 0.5, Z: 1}, Dir: v3.Vec{Z: -1}}, box)
	if !ok || math.Abs(d-1) > 1e-12 {
		t.Errorf("entry = %v, %v; want 1, true", d, ok)
	}
}

// gridMesh returns an n x n grid of unit quads in the z=0 plane, each
// triangle tagged with its index.
func gridMesh(n int) *Mesh {
	m := NewMesh("grid")
	up := v3.Vec{Z: 1}
	idx := func(i, j int) uint32 { return uint32(j*(n+1) + i) }
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			m.AddVertex(Vertex{Position: v3.Vec{X: float64(i), Y: float64(j)}, Normal: up})
		}
	}
	tri := 0
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			m.AddTriangle(idx(i, j), idx(i+1, j), idx(i+1, j+1), tri)
			tri++
			m.AddTriangle(idx(i, j), idx(i+1, j+1), idx(i, j+1), tri)
			tri++
		}
	}
	return m
}

func TestBVHConcurrentQueries(t *testing.T) {
	m := gridMesh(16)
	b := m.BVH()

	rng := rand.New(rand.NewSource(11))
	rays := make([]Ray, 64)
	want := make([]Hit, len(rays))
	wantOK := make([]bool, len(rays))
	for i := range rays {
		rays[i] = Ray{
			Origin: v3.Vec{X: rng.Float64()*18 - 1, Y: rng.Float64()*18 - 1, Z: 2},
			Dir:    v3.Vec{Z: -1},
		}
		want[i], wantOK[i] = m.IntersectLinear(rays[i])
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8*len(rays))
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, r := range rays {
				got, ok := b.Intersect(r)
				if ok != wantOK[i] || (ok && math.Abs(got.Distance-want[i].Distance) > 1e-9) {
					errs <- fmt.Sprintf("ray %d: got (%v, %v), want (%v, %v)", i, got.Distance, ok, want[i].Distance, wantOK[i])
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
