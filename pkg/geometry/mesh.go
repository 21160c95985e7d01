package geometry

import (
	"image/color"
	"math"
	"sort"

	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/spline"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sampling limits for boundary splines.
const (
	DefaultSamples = 16
	MinSamples     = 2
	MaxSamples     = 64
)

// DefaultNodeDepth is how far a node's lane pads extend along its forward
// axis on each side of the cross-section.
const DefaultNodeDepth = 0.5

// Options controls mesh resolution.
type Options struct {
	Samples   int     // points per boundary spline
	NodeDepth float64 // half-length of node lane pads
}

// DefaultOptions returns the resolution used when nothing is configured.
func DefaultOptions() Options {
	return Options{Samples: DefaultSamples, NodeDepth: DefaultNodeDepth}
}

// Normalize clamps the options to usable values.
func (o Options) Normalize() Options {
	switch {
	case o.Samples == 0:
		o.Samples = DefaultSamples
	case o.Samples < MinSamples:
		o.Samples = MinSamples
	case o.Samples > MaxSamples:
		o.Samples = MaxSamples
	}
	if o.NodeDepth <= 0 || math.IsNaN(o.NodeDepth) {
		o.NodeDepth = DefaultNodeDepth
	}
	return o
}

// EdgeSplines returns the left and right boundary curves of the surface
// running from start to end.
func EdgeSplines(start, end Anchor) (left, right spline.Cubic) {
	left = spline.Join(start.Left, end.Left, start.Dir, end.Dir)
	right = spline.Join(start.Right, end.Right, start.Dir, end.Dir)
	return left, right
}

// CenterSpline returns the curve midway between the two boundaries.
func CenterSpline(start, end Anchor) spline.Cubic {
	return spline.Join(start.Center(), end.Center(), start.Dir, end.Dir)
}

// Weave appends a triangle strip between matching samples of the left and
// right boundaries. Colors blend from c0 at the first sample to c1 at the
// last; V runs along the strip and U across it. Every triangle is tagged
// with tag.
func Weave(m *kernel.Mesh, left, right []v3.Vec, up v3.Vec, c0, c1 color.NRGBA, tag kernel.Tag) {
	n := min(len(left), len(right))
	if n < 2 {
		return
	}

	base := uint32(m.VertexCount())
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		next, prev := min(i+1, n-1), max(i-1, 0)
		normal := safeNormal(left[prev], right[prev], left[next], up)
		col := blend(c0, c1, t)
		m.AddVertex(kernel.Vertex{Position: left[i], Normal: normal, U: 0, V: t, Color: col})
		m.AddVertex(kernel.Vertex{Position: right[i], Normal: normal, U: 1, V: t, Color: col})
	}
	for i := 0; i < n-1; i++ {
		l0, r0 := base+uint32(2*i), base+uint32(2*i+1)
		l1, r1 := l0+2, r0+2
		m.AddTriangle(l0, r0, l1, tag)
		m.AddTriangle(r0, r1, l1, tag)
	}
}

// LaneStrip builds the surface of one lane-to-lane connection.
func LaneStrip(name string, start, end Anchor, up v3.Vec, c0, c1 color.NRGBA, tag kernel.Tag, opts Options) *kernel.Mesh {
	opts = opts.Normalize()
	left, right := EdgeSplines(start, end)
	m := kernel.NewMesh(name)
	Weave(m, left.Sample(opts.Samples), right.Sample(opts.Samples), up, c0, c1, tag)
	return m
}

// Band is one lane of a node cross-section.
type Band struct {
	Left, Right float64
	Color       color.NRGBA
	FrontTag    kernel.Tag
	BackTag     kernel.Tag
}

// Node builds the lane pads of a node: for every band, one quad ahead of the
// cross-section tagged FrontTag and one behind it tagged BackTag.
func Node(name string, f Frame, bands []Band, opts Options) *kernel.Mesh {
	opts = opts.Normalize()
	m := kernel.NewMesh(name)
	d := opts.NodeDepth
	for _, b := range bands {
		pad(m, f, b.Left, b.Right, 0, d, b.Color, b.FrontTag)
		pad(m, f, b.Left, b.Right, -d, 0, b.Color, b.BackTag)
	}
	return m
}

func pad(m *kernel.Mesh, f Frame, left, right, from, to float64, c color.NRGBA, tag kernel.Tag) {
	left0, right0 := f.Point(left, from, 0), f.Point(right, from, 0)
	left1, right1 := f.Point(left, to, 0), f.Point(right, to, 0)
	Weave(m, []v3.Vec{left0, left1}, []v3.Vec{right0, right1}, f.Up, c, c, tag)
}

// Section builds a fan-triangulated fill over ring, a set of boundary points
// around center. Points are sorted clockwise (seen from +Z) before
// triangulation.
func Section(name string, center v3.Vec, ring []v3.Vec, c color.NRGBA, tag kernel.Tag) *kernel.Mesh {
	m := kernel.NewMesh(name)
	if len(ring) < 2 {
		return m
	}
	pts := append([]v3.Vec(nil), ring...)
	SortClockwise(center, pts)

	up := v3.Vec{Z: 1}
	ci := m.AddVertex(kernel.Vertex{Position: center, Normal: up, U: 0.5, V: 0.5, Color: c})
	idx := make([]uint32, len(pts))
	for i, p := range pts {
		idx[i] = m.AddVertex(kernel.Vertex{Position: p, Normal: up, U: 0, V: float64(i) / float64(len(pts)), Color: c})
	}
	for i := range idx {
		j := (i + 1) % len(idx)
		if len(idx) == 2 && i == 1 {
			break
		}
		// Clockwise ring: reverse each wedge so the fill faces +Z.
		m.AddTriangle(ci, idx[j], idx[i], tag)
	}
	return m
}

// SortClockwise orders pts by decreasing angle around center in the XY
// plane. Ties keep their relative order.
func SortClockwise(center v3.Vec, pts []v3.Vec) {
	sort.SliceStable(pts, func(i, j int) bool {
		return Angle(center, pts[i]) > Angle(center, pts[j])
	})
}

// Angle returns the XY-plane angle of p around center in (-pi, pi].
func Angle(center, p v3.Vec) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

func blend(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
