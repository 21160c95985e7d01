package kernel

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Epsilon is the minimum accepted hit distance. Hits at or below it are
// discarded so a ray cast from a surface does not hit that surface.
const Epsilon = 1e-6

// parallelEpsilon bounds the determinant below which a ray is treated as
// parallel to a triangle.
const parallelEpsilon = 1e-12

// Ray is a half-line from Origin along Dir. Dir need not be normalized;
// distances are measured in multiples of Dir.
type Ray struct {
	Origin v3.Vec
	Dir    v3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) v3.Vec {
	return r.Origin.Add(r.Dir.MulScalar(t))
}

// Hit describes a ray/triangle intersection.
type Hit struct {
	Distance float64
	Point    v3.Vec
	Triangle int
	Tag      Tag
}

// IntersectTriangle tests r against triangle (a, b, c) using the
// Möller–Trumbore method and returns the hit distance.
func IntersectTriangle(r Ray, a, b, c v3.Vec) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < parallelEpsilon {
		return 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= Epsilon {
		return 0, false
	}
	return t, true
}

// IntersectBox returns the entry distance of r into box using the slab
// method. The entry distance is clamped to 0 when the origin is inside.
func IntersectBox(r Ray, box sdf.Box3) (float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)
	o := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	d := [3]float64{r.Dir.X, r.Dir.Y, r.Dir.Z}
	lo := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t0 := (lo[i] - o[i]) * inv
		t1 := (hi[i] - o[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
