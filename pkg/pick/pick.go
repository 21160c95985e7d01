// Package pick finds the entity under a ray: the nearest tagged triangle
// across a set of meshes, and on top of that the network entity that tag
// stands for.
package pick

import (
	"math"

	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/network"
	"github.com/chazu/lanegraph/pkg/spline"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Options controls how meshes are queried.
type Options struct {
	// BruteForce tests every triangle instead of walking each mesh's BVH.
	// Both modes return the same nearest distance; which of two equally
	// near triangles wins may differ.
	BruteForce bool
}

// Result is the nearest hit and the mesh it lies on.
type Result struct {
	kernel.Hit
	Mesh *kernel.Mesh
}

// Nearest returns the closest hit of r over meshes. Meshes whose bounds the
// ray misses, or whose bounds start beyond the best hit so far, are not
// searched. Ties between meshes go to the earlier mesh.
func Nearest(r kernel.Ray, meshes []*kernel.Mesh, opts Options) (Result, bool) {
	best := Result{Hit: kernel.Hit{Distance: math.Inf(1)}}
	found := false
	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		var (
			h  kernel.Hit
			ok bool
		)
		if opts.BruteForce {
			h, ok = m.IntersectLinear(r)
		} else {
			bvh := m.BVH()
			entry, hit := kernel.IntersectBox(r, bvh.Bounds())
			if !hit || entry > best.Distance {
				continue
			}
			h, ok = bvh.Intersect(r)
		}
		if ok && h.Distance < best.Distance {
			best = Result{Hit: h, Mesh: m}
			found = true
		}
	}
	if !found {
		return Result{}, false
	}
	return best, true
}

// Kind says what a Target refers to.
type Kind int

const (
	KindNone Kind = iota
	KindLaneEnd
	KindLaneStrip
	KindSection
)

func (k Kind) String() string {
	switch k {
	case KindLaneEnd:
		return "lane-end"
	case KindLaneStrip:
		return "lane-strip"
	case KindSection:
		return "section"
	default:
		return "none"
	}
}

// Target is a picked network entity.
type Target struct {
	Result
	Kind Kind

	// LaneEnd is the picked lane pad for KindLaneEnd, and the end of the
	// picked lane-strip nearer the hit for KindLaneStrip.
	LaneEnd   network.LaneEnd
	LaneStrip *network.LaneStrip
	Section   *network.Section
}

// Picker resolves rays against a network's current meshes.
type Picker struct {
	net  *network.Network
	opts Options
}

// NewPicker returns a picker over net.
func NewPicker(net *network.Network, opts Options) *Picker {
	return &Picker{net: net, opts: opts}
}

// Pick returns the network entity nearest along r. Stale meshes are rebuilt
// first, so Pick must not run concurrently with edits.
func (p *Picker) Pick(r kernel.Ray) (Target, bool) {
	res, ok := Nearest(r, p.net.Meshes(), p.opts)
	if !ok {
		return Target{}, false
	}
	t := Target{Result: res}
	switch tag := res.Tag.(type) {
	case network.LaneEnd:
		t.Kind = KindLaneEnd
		t.LaneEnd = tag
	case *network.LaneStrip:
		t.Kind = KindLaneStrip
		t.LaneStrip = tag
		t.LaneEnd, _ = LaneHalf(tag, res.Point)
	case *network.Section:
		t.Kind = KindSection
		t.Section = tag
	}
	return t, true
}

// LaneHalf returns the end of ls whose half of the surface contains p, and
// the center-line parameter nearest p. The parameter is approximate; see
// spline.Cubic.NearestParameter.
func LaneHalf(ls *network.LaneStrip, p v3.Vec) (network.LaneEnd, float64) {
	t := ls.CenterLine().NearestParameter(p, spline.DefaultSamples, spline.DefaultPasses)
	if t < 0.5 {
		return ls.Start(), t
	}
	return ls.End(), t
}
