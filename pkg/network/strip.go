package network

import (
	"fmt"
	"image/color"

	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/spline"
	"github.com/samber/lo"
)

// endKey identifies a node-end independently of pointer identity.
type endKey struct {
	node NodeID
	end  End
}

// stripKey is the order-insensitive key of a strip: a <= b.
type stripKey struct {
	a, b endKey
}

func keyOf(x, y NodeEnd) stripKey {
	a, b := endKey{x.Node.id, x.End}, endKey{y.Node.id, y.End}
	if b.node < a.node || (b.node == a.node && b.end < a.end) {
		a, b = b, a
	}
	return stripKey{a, b}
}

// Strip is the undirected connection between two node-ends. It holds the
// lane-strips that run between them.
type Strip struct {
	net  *Network
	a, b NodeEnd

	lanes []*LaneStrip

	mesh      *kernel.Mesh
	destroyed bool
}

// AddStrip returns the strip joining a and b, creating it when none
// exists. Joining a node-end to itself is rejected.
func (n *Network) AddStrip(a, b NodeEnd) (*Strip, error) {
	if err := n.checkStripEnds(a, b); err != nil {
		return nil, n.reject("add strip", err)
	}
	return n.addStrip(a, b), nil
}

func (n *Network) checkStripEnds(a, b NodeEnd) error {
	if err := n.ownsEnd(a); err != nil {
		return fmt.Errorf("network: strip end %s: %w", a, err)
	}
	if err := n.ownsEnd(b); err != nil {
		return fmt.Errorf("network: strip end %s: %w", b, err)
	}
	if a == b {
		return fmt.Errorf("network: strip %s to %s: %w", a, b, ErrSelfConnection)
	}
	return nil
}

// addStrip creates or returns the strip between two checked node-ends.
func (n *Network) addStrip(a, b NodeEnd) *Strip {
	k := keyOf(a, b)
	if s, ok := n.stripIndex[k]; ok {
		return s
	}
	s := &Strip{net: n, a: a, b: b}
	n.strips = append(n.strips, s)
	n.stripIndex[k] = s
	a.Node.strips[a.End] = append(a.Node.strips[a.End], s)
	b.Node.strips[b.End] = append(b.Node.strips[b.End], s)
	n.log.Debug().Str("a", a.String()).Str("b", b.String()).Msg("strip added")
	n.emit(Event{Kind: StripAdded, Strip: s})
	return s
}

// A returns the node-end the strip was created from.
func (s *Strip) A() NodeEnd { return s.a }

// B returns the other node-end.
func (s *Strip) B() NodeEnd { return s.b }

// Has reports whether ne is one of the strip's ends.
func (s *Strip) Has(ne NodeEnd) bool { return ne == s.a || ne == s.b }

// Other returns the end opposite ne across the strip.
func (s *Strip) Other(ne NodeEnd) NodeEnd {
	if ne == s.a {
		return s.b
	}
	return s.a
}

// Destroyed reports whether the strip was removed.
func (s *Strip) Destroyed() bool { return s.destroyed }

func (s *Strip) String() string { return s.a.String() + "~" + s.b.String() }

// LaneStrips returns the strip's lane-strips in insertion order.
func (s *Strip) LaneStrips() []*LaneStrip { return append([]*LaneStrip(nil), s.lanes...) }

// Len returns the number of lane-strips.
func (s *Strip) Len() int { return len(s.lanes) }

// Find returns the lane-strip joining x and y in either order, or nil.
func (s *Strip) Find(x, y LaneEnd) *LaneStrip {
	ls, _ := lo.Find(s.lanes, func(ls *LaneStrip) bool { return ls.joins(x, y) })
	return ls
}

// AddLaneStrip connects start to end. The two lane-ends must lie on the
// strip's two node-ends, one on each, and must not already be joined by a
// lane-strip of this strip in either direction.
func (s *Strip) AddLaneStrip(start, end LaneEnd) (*LaneStrip, error) {
	if err := s.checkLaneStrip(start, end, nil); err != nil {
		return nil, s.net.reject("add lane-strip", err)
	}
	return s.addLaneStrip(start, end), nil
}

// checkLaneStrip validates a prospective (start, end) pair. self is the
// lane-strip being re-pointed, excluded from the duplicate check.
func (s *Strip) checkLaneStrip(start, end LaneEnd, self *LaneStrip) error {
	if s.destroyed {
		return fmt.Errorf("network: strip %s: %w", s, ErrDestroyed)
	}
	if err := s.net.ownsLaneEnd(start); err != nil {
		return fmt.Errorf("network: lane-strip start %s: %w", start, err)
	}
	if err := s.net.ownsLaneEnd(end); err != nil {
		return fmt.Errorf("network: lane-strip end %s: %w", end, err)
	}
	sa, ea := start.NodeEnd(), end.NodeEnd()
	if !(sa == s.a && ea == s.b) && !(sa == s.b && ea == s.a) {
		return fmt.Errorf("network: lane-strip %s to %s on strip %s: %w", start, end, s, ErrForeignEntity)
	}
	if dup := s.Find(start, end); dup != nil && dup != self {
		return fmt.Errorf("network: lane-strip %s to %s: %w", start, end, ErrDuplicateLaneStrip)
	}
	return nil
}

func (s *Strip) addLaneStrip(start, end LaneEnd) *LaneStrip {
	ls := &LaneStrip{strip: s, start: start, end: end}
	s.lanes = append(s.lanes, ls)
	ls.attach()
	s.mesh = nil
	s.net.emit(Event{Kind: LaneStripAdded, Strip: s, LaneStrip: ls})
	return ls
}

// Destroy removes the strip and all its lane-strips.
func (s *Strip) Destroy() error {
	if s.destroyed {
		return s.net.reject("destroy strip", fmt.Errorf("network: strip %s: %w", s, ErrDestroyed))
	}
	s.destroy()
	return nil
}

func (s *Strip) destroy() {
	for _, ls := range append([]*LaneStrip(nil), s.lanes...) {
		ls.destroy()
	}
	n := s.net
	s.a.Node.strips[s.a.End] = lo.Without(s.a.Node.strips[s.a.End], s)
	s.b.Node.strips[s.b.End] = lo.Without(s.b.Node.strips[s.b.End], s)
	n.strips = lo.Without(n.strips, s)
	delete(n.stripIndex, keyOf(s.a, s.b))
	s.destroyed = true
	s.mesh = nil
	n.log.Debug().Str("strip", s.String()).Msg("strip removed")
	n.emit(Event{Kind: StripRemoved, Strip: s})
}

// Stale reports whether the strip's mesh will be rebuilt on next read.
func (s *Strip) Stale() bool { return s.mesh == nil }

// Mesh returns the union of the strip's lane-strip meshes. Triangles keep
// their lane-strip tags.
func (s *Strip) Mesh() *kernel.Mesh {
	if s.mesh != nil {
		return s.mesh
	}
	m := kernel.NewMesh("strip:" + s.String())
	for _, ls := range s.lanes {
		m.Append(ls.Mesh())
	}
	s.mesh = m
	s.net.built(Event{Kind: MeshBuilt, Strip: s}, m)
	return m
}

func (s *Strip) invalidateAll() {
	s.mesh = nil
	for _, ls := range s.lanes {
		ls.mesh = nil
	}
}

// LaneStrip is one lane-to-lane connection inside a strip.
type LaneStrip struct {
	strip      *Strip
	start, end LaneEnd
	spec       *LaneSpec

	mesh      *kernel.Mesh
	destroyed bool
}

// Strip returns the owning strip.
func (ls *LaneStrip) Strip() *Strip { return ls.strip }

// Start returns the lane-end travel departs from.
func (ls *LaneStrip) Start() LaneEnd { return ls.start }

// End returns the lane-end travel arrives at.
func (ls *LaneStrip) End() LaneEnd { return ls.end }

// Destroyed reports whether the lane-strip was removed.
func (ls *LaneStrip) Destroyed() bool { return ls.destroyed }

func (ls *LaneStrip) String() string { return ls.start.String() + "->" + ls.end.String() }

// Spec returns the override spec if one is set, else the start lane's.
func (ls *LaneStrip) Spec() LaneSpec {
	if ls.spec != nil {
		return *ls.spec
	}
	return ls.start.Lane.spec
}

// Override returns the override spec, if any.
func (ls *LaneStrip) Override() (LaneSpec, bool) {
	if ls.spec == nil {
		return LaneSpec{}, false
	}
	return *ls.spec, true
}

// SetSpec sets the override spec.
func (ls *LaneStrip) SetSpec(s LaneSpec) error {
	if ls.destroyed {
		return ls.net().reject("set lane-strip spec", fmt.Errorf("network: lane-strip %s: %w", ls, ErrDestroyed))
	}
	ls.spec = &s
	ls.changed()
	return nil
}

// ClearSpec removes the override so the strip follows its lanes' specs.
func (ls *LaneStrip) ClearSpec() error {
	if ls.destroyed {
		return ls.net().reject("clear lane-strip spec", fmt.Errorf("network: lane-strip %s: %w", ls, ErrDestroyed))
	}
	if ls.spec == nil {
		return nil
	}
	ls.spec = nil
	ls.changed()
	return nil
}

// SetStart re-points the start to another lane at the same node-end.
func (ls *LaneStrip) SetStart(le LaneEnd) error { return ls.repoint(&ls.start, le) }

// SetEnd re-points the end to another lane at the same node-end.
func (ls *LaneStrip) SetEnd(le LaneEnd) error { return ls.repoint(&ls.end, le) }

func (ls *LaneStrip) repoint(slot *LaneEnd, le LaneEnd) error {
	net := ls.net()
	if ls.destroyed {
		return net.reject("repoint lane-strip", fmt.Errorf("network: lane-strip %s: %w", ls, ErrDestroyed))
	}
	start, end := ls.start, ls.end
	if slot == &ls.start {
		start = le
	} else {
		end = le
	}
	if err := ls.strip.checkLaneStrip(start, end, ls); err != nil {
		return net.reject("repoint lane-strip", err)
	}
	if le.NodeEnd() != slot.NodeEnd() {
		return net.reject("repoint lane-strip",
			fmt.Errorf("network: lane-strip %s: %s is not at %s: %w", ls, le, slot.NodeEnd(), ErrForeignEntity))
	}
	if *slot == le {
		return nil
	}
	ls.detach()
	*slot = le
	ls.attach()
	ls.changed()
	return nil
}

// Destroy removes the lane-strip from its strip and lanes.
func (ls *LaneStrip) Destroy() error {
	if ls.destroyed {
		return ls.net().reject("destroy lane-strip", fmt.Errorf("network: lane-strip %s: %w", ls, ErrDestroyed))
	}
	ls.destroy()
	return nil
}

func (ls *LaneStrip) destroy() {
	ls.detach()
	s := ls.strip
	s.lanes = lo.Without(s.lanes, ls)
	s.mesh = nil
	ls.destroyed = true
	ls.mesh = nil
	s.net.emit(Event{Kind: LaneStripRemoved, Strip: s, LaneStrip: ls})
}

// Stale reports whether the lane-strip's mesh will be rebuilt on next read.
func (ls *LaneStrip) Stale() bool { return ls.mesh == nil }

// Anchors returns the start and end anchors of the lane-strip surface.
func (ls *LaneStrip) Anchors() (start, end geometry.Anchor) {
	sl, el := ls.start.Lane, ls.end.Lane
	start = geometry.LaneAnchor(sl.node.Frame(), sl.left, sl.right, ls.start.End == Back, false)
	end = geometry.LaneAnchor(el.node.Frame(), el.left, el.right, ls.end.End == Back, true)
	return start, end
}

// Edges returns the left and right boundary splines.
func (ls *LaneStrip) Edges() (left, right spline.Cubic) {
	return geometry.EdgeSplines(ls.Anchors())
}

// CenterLine returns the spline midway between the edges.
func (ls *LaneStrip) CenterLine() spline.Cubic {
	return geometry.CenterSpline(ls.Anchors())
}

// Colors returns the colors at the start and end of the surface: the
// override color throughout, or a blend between the two lanes' colors.
func (ls *LaneStrip) Colors() (start, end color.NRGBA) {
	if ls.spec != nil {
		return ls.spec.Color, ls.spec.Color
	}
	return ls.start.Lane.spec.Color, ls.end.Lane.spec.Color
}

// Mesh returns the lane-strip surface; every triangle is tagged with the
// lane-strip.
func (ls *LaneStrip) Mesh() *kernel.Mesh {
	if ls.mesh != nil {
		return ls.mesh
	}
	start, end := ls.Anchors()
	c0, c1 := ls.Colors()
	up := ls.start.Lane.node.Frame().Up
	ls.mesh = geometry.LaneStrip("lane-strip:"+ls.String(), start, end, up, c0, c1, ls, ls.net().opts)
	ls.net().built(Event{Kind: MeshBuilt, LaneStrip: ls}, ls.mesh)
	return ls.mesh
}

func (ls *LaneStrip) net() *Network { return ls.strip.net }

func (ls *LaneStrip) joins(x, y LaneEnd) bool {
	return (ls.start == x && ls.end == y) || (ls.start == y && ls.end == x)
}

// attach adds ls to the connection sets of its lanes. A lane-strip with
// both ends on one lane is registered once.
func (ls *LaneStrip) attach() {
	for _, l := range []*Lane{ls.start.Lane, ls.end.Lane} {
		if !lo.Contains(l.conns, ls) {
			l.conns = append(l.conns, ls)
		}
	}
}

func (ls *LaneStrip) detach() {
	for _, l := range []*Lane{ls.start.Lane, ls.end.Lane} {
		l.conns = lo.Without(l.conns, ls)
	}
}

// invalidate drops the lane-strip mesh and its strip's aggregate.
func (ls *LaneStrip) invalidate() {
	ls.mesh = nil
	ls.strip.mesh = nil
}

func (ls *LaneStrip) changed() {
	ls.invalidate()
	ls.net().emit(Event{Kind: LaneStripChanged, Strip: ls.strip, LaneStrip: ls})
}
