package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/chazu/lanegraph/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
)

// End selects one of the two directions traffic can flow through a node.
// Travel leaves through the front along the node's forward axis and
// through the back against it.
type End uint8

const (
	Front End = iota
	Back
)

// Opposite returns the other end.
func (e End) Opposite() End { return e ^ 1 }

func (e End) String() string {
	switch e {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("End(%d)", int(e))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e End) MarshalText() ([]byte, error) {
	if e != Front && e != Back {
		return nil, fmt.Errorf("network: bad end %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *End) UnmarshalText(b []byte) error {
	switch string(b) {
	case "front":
		*e = Front
	case "back":
		*e = Back
	default:
		return fmt.Errorf("network: bad end %q", b)
	}
	return nil
}

// Node is an oriented cross-section anchor holding lanes ordered by their
// left offset.
type Node struct {
	net  *Network
	id   NodeID
	name string
	pose Pose

	lanes    []*Lane
	strips   [2][]*Strip // per End, written only by Strip
	sections []*Section  // written only by Section

	mesh      *kernel.Mesh
	destroyed bool
}

// ID returns the node's stable identifier.
func (n *Node) ID() NodeID { return n.id }

// Name returns the node's name, possibly empty.
func (n *Node) Name() string { return n.name }

// Network returns the owning network.
func (n *Node) Network() *Network { return n.net }

// Destroyed reports whether the node was removed from its network.
func (n *Node) Destroyed() bool { return n.destroyed }

// Pose returns the node's current pose.
func (n *Node) Pose() Pose { return n.pose }

// Frame returns the node's reference frame.
func (n *Node) Frame() geometry.Frame { return n.pose.Frame() }

func (n *Node) String() string {
	if n.name != "" {
		return n.name
	}
	return n.id.Short()
}

// SetPose moves and orients the node.
func (n *Node) SetPose(p Pose) error {
	if n.destroyed {
		return n.net.reject("set pose", fmt.Errorf("network: set pose of %s: %w", n, ErrDestroyed))
	}
	if err := p.validate(); err != nil {
		return n.net.reject("set pose", fmt.Errorf("network: set pose of %s: %w", n, err))
	}
	n.pose = p
	n.invalidatePose()
	n.net.emit(Event{Kind: NodeMoved, Node: n})
	return nil
}

// Move translates the node by delta.
func (n *Node) Move(delta v3.Vec) error {
	p := n.pose
	p.Position = p.Position.Add(delta)
	return n.SetPose(p)
}

// Rotate turns the node about its vertical axis by delta.
func (n *Node) Rotate(delta Turn) error {
	p := n.pose
	p.Azimuth += delta
	return n.SetPose(p)
}

// Lanes returns the node's lanes in index order.
func (n *Node) Lanes() []*Lane { return append([]*Lane(nil), n.lanes...) }

// LaneCount returns the number of lanes.
func (n *Node) LaneCount() int { return len(n.lanes) }

// Lane returns lane i.
func (n *Node) Lane(i int) (*Lane, error) {
	if i < 0 || i >= len(n.lanes) {
		return nil, fmt.Errorf("network: node %s lane %d of %d: %w", n, i, len(n.lanes), ErrIndexOutOfRange)
	}
	return n.lanes[i], nil
}

// AddLane inserts a lane spanning [left, right], keeping lanes ordered by
// left offset. Lanes at or after the insertion point are renumbered.
func (n *Node) AddLane(left, right float64, spec LaneSpec) (*Lane, error) {
	if n.destroyed {
		return nil, n.net.reject("add lane", fmt.Errorf("network: add lane to %s: %w", n, ErrDestroyed))
	}
	if err := checkOffsets(left, right); err != nil {
		return nil, n.net.reject("add lane", fmt.Errorf("network: add lane to %s: %w", n, err))
	}

	at := sort.Search(len(n.lanes), func(i int) bool { return n.lanes[i].left > left })
	l := &Lane{node: n, left: left, right: right, spec: spec}
	n.lanes = append(n.lanes, nil)
	copy(n.lanes[at+1:], n.lanes[at:])
	n.lanes[at] = l
	n.renumber()

	n.invalidateShape()
	n.net.emit(Event{Kind: LaneAdded, Node: n, Lane: l})
	return l, nil
}

// RemoveLane removes lane i, destroying every lane-strip that references
// it. Later lanes are renumbered.
func (n *Node) RemoveLane(i int) error {
	if n.destroyed {
		return n.net.reject("remove lane", fmt.Errorf("network: remove lane from %s: %w", n, ErrDestroyed))
	}
	l, err := n.Lane(i)
	if err != nil {
		return n.net.reject("remove lane", err)
	}

	for _, ls := range l.Connections() {
		ls.destroy()
	}
	n.lanes = append(n.lanes[:i], n.lanes[i+1:]...)
	n.renumber()
	l.destroyed = true
	l.index = -1

	n.invalidateShape()
	n.net.emit(Event{Kind: LaneRemoved, Node: n, Lane: l})
	return nil
}

// Destroy removes the node from its network.
func (n *Node) Destroy() error { return n.net.RemoveNode(n) }

// Front returns the node's front end.
func (n *Node) Front() NodeEnd { return NodeEnd{Node: n, End: Front} }

// Back returns the node's back end.
func (n *Node) Back() NodeEnd { return NodeEnd{Node: n, End: Back} }

// End returns the node-end for e.
func (n *Node) End(e End) NodeEnd { return NodeEnd{Node: n, End: e} }

// Sections returns the sections the node belongs to.
func (n *Node) Sections() []*Section { return append([]*Section(nil), n.sections...) }

// Extent returns the leftmost and rightmost lane offsets, or zeros for a
// node without lanes.
func (n *Node) Extent() (left, right float64) {
	if len(n.lanes) == 0 {
		return 0, 0
	}
	left = lo.MinBy(n.lanes, func(a, b *Lane) bool { return a.left < b.left }).left
	right = lo.MaxBy(n.lanes, func(a, b *Lane) bool { return a.right > b.right }).right
	return left, right
}

// Stale reports whether the node's mesh will be rebuilt on next read.
func (n *Node) Stale() bool { return n.mesh == nil }

// Mesh returns the node's lane pads: a quad per lane ahead of and behind
// the cross-section, tagged with the LaneEnd it represents.
func (n *Node) Mesh() *kernel.Mesh {
	if n.mesh != nil {
		return n.mesh
	}
	bands := lo.Map(n.lanes, func(l *Lane, _ int) geometry.Band {
		return geometry.Band{
			Left:     l.left,
			Right:    l.right,
			Color:    l.spec.Color,
			FrontTag: l.Front(),
			BackTag:  l.Back(),
		}
	})
	n.mesh = geometry.Node("node:"+n.String(), n.Frame(), bands, n.net.opts)
	n.net.built(Event{Kind: MeshBuilt, Node: n}, n.mesh)
	return n.mesh
}

func (n *Node) renumber() {
	for i, l := range n.lanes {
		l.index = i
	}
}

// invalidatePose drops everything a pose change affects: the node mesh,
// every strip at either end with its lane-strips, and member sections.
func (n *Node) invalidatePose() {
	n.mesh = nil
	for _, strips := range n.strips {
		for _, s := range strips {
			s.invalidateAll()
		}
	}
	n.invalidateSections()
}

// invalidateShape drops the node mesh and member sections.
func (n *Node) invalidateShape() {
	n.mesh = nil
	n.invalidateSections()
}

func (n *Node) invalidateSections() {
	for _, sec := range n.sections {
		sec.invalidate()
	}
}

func checkOffsets(left, right float64) error {
	switch {
	case math.IsNaN(left) || math.IsNaN(right) || math.IsInf(left, 0) || math.IsInf(right, 0):
		return fmt.Errorf("%w: non-finite [%v, %v]", ErrInvalidLane, left, right)
	case right <= left:
		return fmt.Errorf("%w: right %v not beyond left %v", ErrInvalidLane, right, left)
	}
	return nil
}

// Lane is one traffic lane of a node.
type Lane struct {
	node        *Node
	index       int
	left, right float64
	spec        LaneSpec

	conns     []*LaneStrip // written only by LaneStrip
	destroyed bool
}

// Node returns the owning node.
func (l *Lane) Node() *Node { return l.node }

// Index returns the lane's position in its node, or -1 once removed.
func (l *Lane) Index() int { return l.index }

// Left returns the left lateral offset.
func (l *Lane) Left() float64 { return l.left }

// Right returns the right lateral offset.
func (l *Lane) Right() float64 { return l.right }

// Width returns Right - Left.
func (l *Lane) Width() float64 { return l.right - l.left }

// Center returns the lateral offset of the lane's middle.
func (l *Lane) Center() float64 { return (l.left + l.right) / 2 }

// Spec returns the lane's spec.
func (l *Lane) Spec() LaneSpec { return l.spec }

// Destroyed reports whether the lane was removed.
func (l *Lane) Destroyed() bool { return l.destroyed }

func (l *Lane) String() string { return fmt.Sprintf("%s/%d", l.node, l.index) }

// Front returns the lane at its node's front end.
func (l *Lane) Front() LaneEnd { return LaneEnd{Lane: l, End: Front} }

// Back returns the lane at its node's back end.
func (l *Lane) Back() LaneEnd { return LaneEnd{Lane: l, End: Back} }

// End returns the lane at end e.
func (l *Lane) End(e End) LaneEnd { return LaneEnd{Lane: l, End: e} }

// Connections returns the lane-strips terminating on this lane.
func (l *Lane) Connections() []*LaneStrip { return append([]*LaneStrip(nil), l.conns...) }

// SetSpec replaces the lane's spec.
func (l *Lane) SetSpec(s LaneSpec) error {
	if l.destroyed {
		return l.node.net.reject("set lane spec", fmt.Errorf("network: set spec of lane %s: %w", l, ErrDestroyed))
	}
	if s == l.spec {
		return nil
	}
	l.spec = s
	l.node.mesh = nil
	l.invalidateConnections()
	l.node.net.emit(Event{Kind: LaneChanged, Node: l.node, Lane: l})
	return nil
}

// SetOffsets moves the lane's edges. The lane must stay between its
// neighbours' left offsets so indices keep their meaning.
func (l *Lane) SetOffsets(left, right float64) error {
	net := l.node.net
	if l.destroyed {
		return net.reject("set lane offsets", fmt.Errorf("network: set offsets of lane %s: %w", l, ErrDestroyed))
	}
	if err := checkOffsets(left, right); err != nil {
		return net.reject("set lane offsets", fmt.Errorf("network: set offsets of lane %s: %w", l, err))
	}
	lanes := l.node.lanes
	if l.index > 0 && left < lanes[l.index-1].left {
		return net.reject("set lane offsets", fmt.Errorf("network: set offsets of lane %s: %w: left %v passes lane %d",
			l, ErrInvalidLane, left, l.index-1))
	}
	if l.index < len(lanes)-1 && left > lanes[l.index+1].left {
		return net.reject("set lane offsets", fmt.Errorf("network: set offsets of lane %s: %w: left %v passes lane %d",
			l, ErrInvalidLane, left, l.index+1))
	}
	l.left, l.right = left, right
	l.node.invalidateShape()
	l.invalidateConnections()
	net.emit(Event{Kind: LaneChanged, Node: l.node, Lane: l})
	return nil
}

func (l *Lane) invalidateConnections() {
	for _, ls := range l.conns {
		ls.invalidate()
	}
}

// NodeEnd is one travel direction through a node. It is comparable and can
// be used as a map key.
type NodeEnd struct {
	Node *Node
	End  End
}

// Opposite returns the other end of the same node.
func (ne NodeEnd) Opposite() NodeEnd { return NodeEnd{Node: ne.Node, End: ne.End.Opposite()} }

// Strips returns the strips touching this node-end.
func (ne NodeEnd) Strips() []*Strip {
	if ne.Node == nil || ne.End > Back {
		return nil
	}
	return append([]*Strip(nil), ne.Node.strips[ne.End]...)
}

// Lane returns the lane-end of lane i at this node-end.
func (ne NodeEnd) Lane(i int) (LaneEnd, error) {
	l, err := ne.Node.Lane(i)
	if err != nil {
		return LaneEnd{}, err
	}
	return LaneEnd{Lane: l, End: ne.End}, nil
}

// Direction returns the direction in which travel leaves the node here.
func (ne NodeEnd) Direction() v3.Vec { return ne.Node.Frame().Outward(ne.End == Back) }

func (ne NodeEnd) String() string {
	if ne.Node == nil {
		return "<nil>." + ne.End.String()
	}
	return ne.Node.String() + "." + ne.End.String()
}

// LaneEnd is a lane at one end of its node: the addressable endpoint of a
// lane-strip. It is comparable and is the pick tag of a node's lane pads.
type LaneEnd struct {
	Lane *Lane
	End  End
}

// Opposite returns the same lane at the other end of the node.
func (le LaneEnd) Opposite() LaneEnd { return LaneEnd{Lane: le.Lane, End: le.End.Opposite()} }

// NodeEnd returns the node-end the lane-end lies on.
func (le LaneEnd) NodeEnd() NodeEnd {
	if le.Lane == nil {
		return NodeEnd{End: le.End}
	}
	return NodeEnd{Node: le.Lane.node, End: le.End}
}

// Node returns the lane's node.
func (le LaneEnd) Node() *Node { return le.Lane.node }

// Index returns the lane's index.
func (le LaneEnd) Index() int { return le.Lane.index }

// Position returns the world position of the lane's center line at the
// node's cross-section.
func (le LaneEnd) Position() v3.Vec {
	return le.Lane.node.Frame().Point(le.Lane.Center(), 0, 0)
}

// Direction returns the direction in which travel leaves the node here.
func (le LaneEnd) Direction() v3.Vec { return le.NodeEnd().Direction() }

// Connections returns the lane-strips attached at this lane-end.
func (le LaneEnd) Connections() []*LaneStrip {
	return lo.Filter(le.Lane.conns, func(ls *LaneStrip, _ int) bool {
		return ls.start == le || ls.end == le
	})
}

// Move drags the owning node by delta.
func (le LaneEnd) Move(delta v3.Vec) error { return le.Lane.node.Move(delta) }

// Rotate turns the owning node by delta.
func (le LaneEnd) Rotate(delta Turn) error { return le.Lane.node.Rotate(delta) }

func (le LaneEnd) String() string {
	if le.Lane == nil {
		return "<nil>." + le.End.String()
	}
	return le.Lane.String() + "." + le.End.String()
}
