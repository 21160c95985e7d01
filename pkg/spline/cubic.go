package spline

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Default search parameters for NearestParameter.
const (
	DefaultSamples = 20
	DefaultPasses  = 5
)

// Cubic is a cubic Bezier curve with end points A and D and control points
// B and C.
type Cubic struct {
	A, B, C, D v3.Vec
}

// Point returns a degenerate curve whose four points all sit at p.
func Point(p v3.Vec) Cubic {
	return Cubic{A: p, B: p, C: p, D: p}
}

// Line returns the straight cubic from p to q with evenly spaced controls.
func Line(p, q v3.Vec) Cubic {
	d := q.Sub(p)
	return Cubic{
		A: p,
		B: p.Add(d.MulScalar(1.0 / 3)),
		C: p.Add(d.MulScalar(2.0 / 3)),
		D: q,
	}
}

// Eval returns the point at parameter t, clamped to [0, 1]. Eval(0) is
// exactly A and Eval(1) is exactly D.
func (c Cubic) Eval(t float64) v3.Vec {
	t = clamp01(t)
	switch {
	case t <= 0:
		return c.A
	case t >= 1:
		return c.D
	}
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	cc := 3 * mt * t * t
	d := t * t * t
	return c.A.MulScalar(a).
		Add(c.B.MulScalar(b)).
		Add(c.C.MulScalar(cc)).
		Add(c.D.MulScalar(d))
}

// Derivative returns the first derivative at t.
func (c Cubic) Derivative(t float64) v3.Vec {
	t = clamp01(t)
	mt := 1 - t
	p := c.B.Sub(c.A).MulScalar(3 * mt * mt)
	q := c.C.Sub(c.B).MulScalar(6 * mt * t)
	r := c.D.Sub(c.C).MulScalar(3 * t * t)
	return p.Add(q).Add(r)
}

// Add translates the curve by v.
func (c Cubic) Add(v v3.Vec) Cubic {
	return Cubic{A: c.A.Add(v), B: c.B.Add(v), C: c.C.Add(v), D: c.D.Add(v)}
}

// Sub translates the curve by -v.
func (c Cubic) Sub(v v3.Vec) Cubic {
	return Cubic{A: c.A.Sub(v), B: c.B.Sub(v), C: c.C.Sub(v), D: c.D.Sub(v)}
}

// AddCurve adds o control point by control point. Because Bezier evaluation
// is linear in the control points, the result evaluates to c(t)+o(t).
func (c Cubic) AddCurve(o Cubic) Cubic {
	return Cubic{A: c.A.Add(o.A), B: c.B.Add(o.B), C: c.C.Add(o.C), D: c.D.Add(o.D)}
}

// SubCurve subtracts o control point by control point.
func (c Cubic) SubCurve(o Cubic) Cubic {
	return Cubic{A: c.A.Sub(o.A), B: c.B.Sub(o.B), C: c.C.Sub(o.C), D: c.D.Sub(o.D)}
}

// Scale multiplies every control point by s.
func (c Cubic) Scale(s float64) Cubic {
	return Cubic{A: c.A.MulScalar(s), B: c.B.MulScalar(s), C: c.C.MulScalar(s), D: c.D.MulScalar(s)}
}

// Reverse returns the same curve traversed from D to A.
func (c Cubic) Reverse() Cubic {
	return Cubic{A: c.D, B: c.C, C: c.B, D: c.A}
}

// Split divides the curve at t using De Casteljau's construction. Both
// halves share the split point: left.D == right.A.
func (c Cubic) Split(t float64) (Cubic, Cubic) {
	t = clamp01(t)
	ab := lerp(c.A, c.B, t)
	bc := lerp(c.B, c.C, t)
	cd := lerp(c.C, c.D, t)
	abc := lerp(ab, bc, t)
	bcd := lerp(bc, cd, t)
	mid := lerp(abc, bcd, t)
	return Cubic{A: c.A, B: ab, C: abc, D: mid}, Cubic{A: mid, B: bcd, C: cd, D: c.D}
}

// TriSection cuts the curve at t0 and t1 (t0 <= t1) and returns the pieces
// [0,t0], [t0,t1] and [t1,1]. A zero-length remainder at either end is
// returned as a point curve instead of being produced by a further split.
func (c Cubic) TriSection(t0, t1 float64) (Cubic, Cubic, Cubic) {
	t0, t1 = clamp01(t0), clamp01(t1)
	if t0 > t1 {
		t0, t1 = t1, t0
	}

	var rest, tail Cubic
	if t1 >= 1 {
		rest, tail = c, Point(c.D)
	} else {
		rest, tail = c.Split(t1)
	}

	// t0 <= 0 also covers t1 == 0, so the division below is safe.
	if t0 <= 0 {
		return Point(c.A), rest, tail
	}
	head, mid := rest.Split(t0 / t1)
	return head, mid, tail
}

// Join builds the curve from posA to posB whose end tangents follow tanA and
// tanB (both in the direction of travel). The inner control points sit at
// posA + tanA*h and posB - tanB*h with h half the distance between the end
// points, which keeps the join shape stable as the ends move apart.
// Tangents are normalized first; zero tangents yield coincident controls.
func Join(posA, posB, tanA, tanB v3.Vec) Cubic {
	h := posB.Sub(posA).Length() / 2
	return Cubic{
		A: posA,
		B: posA.Add(unit(tanA).MulScalar(h)),
		C: posB.Sub(unit(tanB).MulScalar(h)),
		D: posB,
	}
}

// Sample returns n points evenly spaced in parameter, including both ends.
// n below 2 is raised to 2.
func (c Cubic) Sample(n int) []v3.Vec {
	if n < 2 {
		n = 2
	}
	pts := make([]v3.Vec, n)
	for i := range pts {
		pts[i] = c.Eval(float64(i) / float64(n-1))
	}
	return pts
}

// Length approximates the arc length with an n-segment polyline.
func (c Cubic) Length(n int) float64 {
	pts := c.Sample(n + 1)
	var total float64
	for i := 1; i < len(pts); i++ {
		total += pts[i].Sub(pts[i-1]).Length()
	}
	return total
}

// Hull returns the bounding box of the control polygon, which contains the
// whole curve.
func (c Cubic) Hull() sdf.Box3 {
	lo := c.A.Min(c.B).Min(c.C).Min(c.D)
	hi := c.A.Max(c.B).Max(c.C).Max(c.D)
	return sdf.Box3{Min: lo, Max: hi}
}

// NearestParameter approximates the parameter of the point on the curve
// closest to p. Each pass samples the current bracket at `samples` evenly
// spaced parameters, keeps the closest one and narrows the bracket to two
// samples either side of it. After `passes` passes the bracket midpoint is
// returned.
//
// This is a gradient-free local search. It can settle on a local minimum
// when the curve passes near p more than once, so callers should only rely
// on it for coarse decisions such as which half of a lane is under the
// pointer.
func (c Cubic) NearestParameter(p v3.Vec, samples, passes int) float64 {
	if samples < 3 {
		samples = 3
	}
	if passes < 1 {
		passes = 1
	}
	lo, hi := 0.0, 1.0
	for pass := 0; pass < passes; pass++ {
		step := (hi - lo) / float64(samples-1)
		if step <= 0 {
			break
		}
		best, bestDist := 0, math.Inf(1)
		for i := 0; i < samples; i++ {
			d := c.Eval(lo + step*float64(i)).Sub(p).Length2()
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		nlo := lo + step*float64(best-2)
		nhi := lo + step*float64(best+2)
		lo, hi = math.Max(lo, nlo), math.Min(hi, nhi)
	}
	return (lo + hi) / 2
}

// Nearest is NearestParameter with the default sampling.
func (c Cubic) Nearest(p v3.Vec) float64 {
	return c.NearestParameter(p, DefaultSamples, DefaultPasses)
}

func lerp(a, b v3.Vec, t float64) v3.Vec {
	return a.Add(b.Sub(a).MulScalar(t))
}

func clamp01(t float64) float64 {
	switch {
	case t < 0 || math.IsNaN(t):
		return 0
	case t > 1:
		return 1
	}
	return t
}

// unit normalizes v, returning the zero vector for zero or non-finite input.
func unit(v v3.Vec) v3.Vec {
	l := v.Length()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return v3.Vec{}
	}
	return v.DivScalar(l)
}
