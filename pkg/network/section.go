package network

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/chazu/lanegraph/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// DefaultSectionColor fills junction sections.
var DefaultSectionColor = color.NRGBA{R: 72, G: 72, B: 72, A: 255}

// Section groups the node-ends meeting at a junction. Its center and the
// clockwise order of its members are recomputed lazily after any member
// node moves or reshapes, or the membership changes.
type Section struct {
	net   *Network
	id    int
	ends  []NodeEnd
	color color.NRGBA

	// derived, nil/false when stale
	mesh    *kernel.Mesh
	ordered []NodeEnd
	center  v3.Vec
	fresh   bool

	destroyed bool
}

// AddSection creates a section over ends. Duplicate ends are ignored.
func (n *Network) AddSection(ends ...NodeEnd) (*Section, error) {
	for _, ne := range ends {
		if err := n.ownsEnd(ne); err != nil {
			return nil, n.reject("add section", fmt.Errorf("network: section member %s: %w", ne, err))
		}
	}
	sec := &Section{net: n, id: n.nextSection, color: DefaultSectionColor}
	n.nextSection++
	for _, ne := range lo.Uniq(ends) {
		sec.attach(ne)
	}
	n.sections = append(n.sections, sec)
	n.emit(Event{Kind: SectionAdded, Section: sec})
	return sec, nil
}

// ID returns the section's sequence number within its network.
func (s *Section) ID() int { return s.id }

// Destroyed reports whether the section was removed.
func (s *Section) Destroyed() bool { return s.destroyed }

func (s *Section) String() string { return fmt.Sprintf("section#%d", s.id) }

// Ends returns the members in insertion order.
func (s *Section) Ends() []NodeEnd { return append([]NodeEnd(nil), s.ends...) }

// Len returns the number of members.
func (s *Section) Len() int { return len(s.ends) }

// Contains reports whether ne is a member.
func (s *Section) Contains(ne NodeEnd) bool { return lo.Contains(s.ends, ne) }

// Color returns the fill color.
func (s *Section) Color() color.NRGBA { return s.color }

// SetColor changes the fill color.
func (s *Section) SetColor(c color.NRGBA) error {
	if s.destroyed {
		return s.net.reject("section color", fmt.Errorf("network: %s: %w", s, ErrDestroyed))
	}
	s.color = c
	s.changed()
	return nil
}

// Add makes ne a member.
func (s *Section) Add(ne NodeEnd) error {
	if s.destroyed {
		return s.net.reject("section add", fmt.Errorf("network: %s: %w", s, ErrDestroyed))
	}
	if err := s.net.ownsEnd(ne); err != nil {
		return s.net.reject("section add", fmt.Errorf("network: %s member %s: %w", s, ne, err))
	}
	if s.Contains(ne) {
		return nil
	}
	s.attach(ne)
	s.changed()
	return nil
}

// Remove drops ne from the members.
func (s *Section) Remove(ne NodeEnd) error {
	if s.destroyed {
		return s.net.reject("section remove", fmt.Errorf("network: %s: %w", s, ErrDestroyed))
	}
	if !s.Contains(ne) {
		return s.net.reject("section remove", fmt.Errorf("network: %s has no member %s: %w", s, ne, ErrForeignEntity))
	}
	s.detach(ne)
	s.changed()
	return nil
}

// Destroy removes the section from its network.
func (s *Section) Destroy() error {
	if s.destroyed {
		return s.net.reject("destroy section", fmt.Errorf("network: %s: %w", s, ErrDestroyed))
	}
	s.destroy()
	return nil
}

func (s *Section) destroy() {
	for _, ne := range append([]NodeEnd(nil), s.ends...) {
		s.detach(ne)
	}
	s.net.sections = lo.Without(s.net.sections, s)
	s.destroyed = true
	s.invalidate()
	s.net.emit(Event{Kind: SectionRemoved, Section: s})
}

// dropNode removes both ends of node, destroying the section once it has
// no members left.
func (s *Section) dropNode(node *Node) {
	for _, ne := range []NodeEnd{node.Front(), node.Back()} {
		if s.Contains(ne) {
			s.detach(ne)
		}
	}
	if len(s.ends) == 0 {
		s.destroy()
		return
	}
	s.changed()
}

// attach adds a member and records the section on the member's node.
func (s *Section) attach(ne NodeEnd) {
	s.ends = append(s.ends, ne)
	if !lo.Contains(ne.Node.sections, s) {
		ne.Node.sections = append(ne.Node.sections, s)
	}
}

func (s *Section) detach(ne NodeEnd) {
	s.ends = lo.Without(s.ends, ne)
	if !s.Contains(ne.Opposite()) {
		ne.Node.sections = lo.Without(ne.Node.sections, s)
	}
}

func (s *Section) invalidate() {
	s.mesh = nil
	s.fresh = false
}

func (s *Section) changed() {
	s.invalidate()
	s.net.emit(Event{Kind: SectionChanged, Section: s})
}

// Stale reports whether the section's derived data will be recomputed on
// next read.
func (s *Section) Stale() bool { return !s.fresh || s.mesh == nil }

// Center returns the mean of the members' lane-span midpoints.
func (s *Section) Center() v3.Vec {
	s.refresh()
	return s.center
}

// Ordered returns the members sorted clockwise around the center.
func (s *Section) Ordered() []NodeEnd {
	s.refresh()
	return append([]NodeEnd(nil), s.ordered...)
}

func (s *Section) refresh() {
	if s.fresh {
		return
	}
	mids := make(map[NodeEnd]v3.Vec, len(s.ends))
	s.center = v3.Vec{}
	for _, ne := range s.ends {
		mids[ne] = endMidpoint(ne)
		s.center = s.center.Add(mids[ne])
	}
	if len(s.ends) > 0 {
		s.center = s.center.DivScalar(float64(len(s.ends)))
	}
	s.ordered = append(s.ordered[:0], s.ends...)
	angle := func(ne NodeEnd) float64 { return geometry.Angle(s.center, mids[ne]) }
	sort.SliceStable(s.ordered, func(i, j int) bool { return angle(s.ordered[i]) > angle(s.ordered[j]) })
	s.fresh = true
}

// Mesh returns the fan fill over the corners of every member's lane span.
// Triangles are tagged with the section.
func (s *Section) Mesh() *kernel.Mesh {
	if s.mesh != nil && s.fresh {
		return s.mesh
	}
	s.refresh()
	ring := lo.FlatMap(s.ordered, func(ne NodeEnd, _ int) []v3.Vec {
		return endCorners(ne, s.net.opts.NodeDepth)
	})
	s.mesh = geometry.Section(s.String(), s.center, ring, s.color, s)
	s.net.built(Event{Kind: MeshBuilt, Section: s}, s.mesh)
	return s.mesh
}

// endMidpoint is the middle of a node's lane span at the outer edge of the
// pads on the given end.
func endMidpoint(ne NodeEnd) v3.Vec {
	l, r := ne.Node.Extent()
	return ne.Node.Frame().Point((l+r)/2, padOffset(ne, ne.Node.net.opts.NodeDepth), 0)
}

// endCorners are the two outer corners of a node's lane span at one end.
func endCorners(ne NodeEnd, depth float64) []v3.Vec {
	l, r := ne.Node.Extent()
	f := ne.Node.Frame()
	d := padOffset(ne, depth)
	return []v3.Vec{f.Point(l, d, 0), f.Point(r, d, 0)}
}

func padOffset(ne NodeEnd, depth float64) float64 {
	if ne.End == Back {
		return -depth
	}
	return depth
}
