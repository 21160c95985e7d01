// Package geometry turns node poses and lane offsets into boundary splines
// and triangle meshes. It works on plain values and knows nothing about the
// network's object graph; the network package feeds it and caches the
// results.
package geometry

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Frame is the local reference frame of a node. Forward points in the
// node's travel direction, Lateral to its right (lane offsets grow along
// it) and Up completes the right-handed basis.
type Frame struct {
	Origin  v3.Vec
	Forward v3.Vec
	Lateral v3.Vec
	Up      v3.Vec
}

// NewFrame builds the frame of a node at origin, turned by azimuth about +Z,
// pitched up by inclination and rolled by tilt about its forward axis.
// Angles are radians.
func NewFrame(origin v3.Vec, azimuth, inclination, tilt float64) Frame {
	rot := sdf.RotateZ(azimuth).Mul(sdf.RotateY(-inclination)).Mul(sdf.RotateX(tilt))
	return Frame{
		Origin:  origin,
		Forward: rot.MulPosition(v3.Vec{X: 1}),
		Lateral: rot.MulPosition(v3.Vec{Y: -1}),
		Up:      rot.MulPosition(v3.Vec{Z: 1}),
	}
}

// Point returns the world position at the given lateral, forward and
// vertical offsets from the frame origin.
func (f Frame) Point(lateral, forward, up float64) v3.Vec {
	return f.Origin.
		Add(f.Lateral.MulScalar(lateral)).
		Add(f.Forward.MulScalar(forward)).
		Add(f.Up.MulScalar(up))
}

// Outward returns the direction in which travel leaves the node through the
// front (back == false) or back end.
func (f Frame) Outward(back bool) v3.Vec {
	if back {
		return f.Forward.Neg()
	}
	return f.Forward
}

// Anchor is one end of a lane surface: the left and right edge positions
// (as seen in the direction of travel) and the direction of travel.
type Anchor struct {
	Left, Right v3.Vec
	Dir         v3.Vec
}

// LaneAnchor returns the anchor of the lane spanning [left, right] at a node
// end. When departing (the lane-strip starts here) travel follows the end's
// outward direction; when arriving it runs against it. Travelling against
// the node's forward axis swaps which offset is on the left.
func LaneAnchor(f Frame, left, right float64, back, arriving bool) Anchor {
	dir := f.Outward(back)
	if arriving {
		dir = dir.Neg()
	}
	l, r := left, right
	if dir.Dot(f.Forward) < 0 {
		l, r = right, left
	}
	return Anchor{
		Left:  f.Point(l, 0, 0),
		Right: f.Point(r, 0, 0),
		Dir:   dir,
	}
}

// Center returns the midpoint between the anchor's edges.
func (a Anchor) Center() v3.Vec {
	return a.Left.Add(a.Right).MulScalar(0.5)
}

// safeNormal returns the unit normal of (a, b, c) or fallback when the
// triangle is degenerate.
func safeNormal(a, b, c, fallback v3.Vec) v3.Vec {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return fallback
	}
	return n.DivScalar(l)
}
