package network

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/samber/lo"
)

// State is the persistable shape of a network. Lane-strips address their
// endpoints by node-end plus lane index, so saved references stay valid
// until a lane is inserted or removed before them.
type State struct {
	Nodes    map[NodeID]NodeState `json:"nodes"`
	Strips   []StripState         `json:"strips"`
	Sections []SectionState       `json:"sections,omitempty"`
}

// NodeState is one saved node.
type NodeState struct {
	Name  string      `json:"name,omitempty"`
	Pose  Pose        `json:"pose"`
	Lanes []LaneState `json:"lanes"`
}

// LaneState is one saved lane.
type LaneState struct {
	Left  float64  `json:"left"`
	Right float64  `json:"right"`
	Spec  LaneSpec `json:"spec"`
}

// EndRef addresses a node-end.
type EndRef struct {
	Node NodeID `json:"node"`
	End  End    `json:"end"`
}

// LaneRef addresses a lane-end: a node-end and a lane index.
type LaneRef struct {
	EndRef
	Lane int `json:"lane"`
}

// StripState is one saved strip.
type StripState struct {
	A     EndRef           `json:"a"`
	B     EndRef           `json:"b"`
	Lanes []LaneStripState `json:"lanes"`
}

// LaneStripState is one saved lane-strip. Spec is nil unless overridden.
type LaneStripState struct {
	Start LaneRef   `json:"start"`
	End   LaneRef   `json:"end"`
	Spec  *LaneSpec `json:"spec,omitempty"`
}

// SectionState is one saved section.
type SectionState struct {
	Ends  []EndRef    `json:"ends"`
	Color color.NRGBA `json:"color"`
}

// Snapshot captures the network's topology. Meshes are not part of it.
func (n *Network) Snapshot() State {
	st := State{Nodes: make(map[NodeID]NodeState, len(n.nodes))}
	for _, node := range n.nodes {
		st.Nodes[node.id] = NodeState{
			Name: node.name,
			Pose: node.pose,
			Lanes: lo.Map(node.lanes, func(l *Lane, _ int) LaneState {
				return LaneState{Left: l.left, Right: l.right, Spec: l.spec}
			}),
		}
	}
	for _, s := range n.strips {
		ss := StripState{A: refOf(s.a), B: refOf(s.b)}
		for _, ls := range s.lanes {
			lss := LaneStripState{Start: laneRefOf(ls.start), End: laneRefOf(ls.end)}
			if spec, ok := ls.Override(); ok {
				lss.Spec = &spec
			}
			ss.Lanes = append(ss.Lanes, lss)
		}
		st.Strips = append(st.Strips, ss)
	}
	for _, sec := range n.sections {
		st.Sections = append(st.Sections, SectionState{
			Ends:  lo.Map(sec.ends, func(ne NodeEnd, _ int) EndRef { return refOf(ne) }),
			Color: sec.color,
		})
	}
	return st
}

// Restore builds a new network from st. Nodes are created in ID order.
// Any dangling reference fails the whole restore.
func Restore(st State, opts ...Option) (*Network, error) {
	n := New(opts...)

	ids := lo.Keys(st.Nodes)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ns := st.Nodes[id]
		node, err := n.AddNodeWithID(id, ns.Name, ns.Pose)
		if err != nil {
			return nil, fmt.Errorf("network: restore: %w", err)
		}
		for i, ls := range ns.Lanes {
			if _, err := node.AddLane(ls.Left, ls.Right, ls.Spec); err != nil {
				return nil, fmt.Errorf("network: restore: node %s lane %d: %w", id.Short(), i, err)
			}
		}
	}

	for i, ss := range st.Strips {
		a, err := n.resolveEnd(ss.A)
		if err != nil {
			return nil, fmt.Errorf("network: restore: strip %d: %w", i, err)
		}
		b, err := n.resolveEnd(ss.B)
		if err != nil {
			return nil, fmt.Errorf("network: restore: strip %d: %w", i, err)
		}
		s, err := n.AddStrip(a, b)
		if err != nil {
			return nil, fmt.Errorf("network: restore: strip %d: %w", i, err)
		}
		for j, lss := range ss.Lanes {
			start, err := n.resolveLane(lss.Start)
			if err != nil {
				return nil, fmt.Errorf("network: restore: strip %d lane-strip %d: %w", i, j, err)
			}
			end, err := n.resolveLane(lss.End)
			if err != nil {
				return nil, fmt.Errorf("network: restore: strip %d lane-strip %d: %w", i, j, err)
			}
			ls, err := s.AddLaneStrip(start, end)
			if err != nil {
				return nil, fmt.Errorf("network: restore: strip %d lane-strip %d: %w", i, j, err)
			}
			if lss.Spec != nil {
				ls.spec = lo.ToPtr(*lss.Spec)
			}
		}
	}

	for i, ss := range st.Sections {
		ends := make([]NodeEnd, 0, len(ss.Ends))
		for _, ref := range ss.Ends {
			ne, err := n.resolveEnd(ref)
			if err != nil {
				return nil, fmt.Errorf("network: restore: section %d: %w", i, err)
			}
			ends = append(ends, ne)
		}
		sec, err := n.AddSection(ends...)
		if err != nil {
			return nil, fmt.Errorf("network: restore: section %d: %w", i, err)
		}
		sec.color = ss.Color
	}
	return n, nil
}

func (n *Network) resolveEnd(ref EndRef) (NodeEnd, error) {
	node := n.byID[ref.Node]
	if node == nil {
		return NodeEnd{}, fmt.Errorf("node %s: %w", ref.Node.Short(), ErrUnknownNode)
	}
	if ref.End != Front && ref.End != Back {
		return NodeEnd{}, fmt.Errorf("node %s: bad end %d: %w", ref.Node.Short(), ref.End, ErrForeignEntity)
	}
	return node.End(ref.End), nil
}

func (n *Network) resolveLane(ref LaneRef) (LaneEnd, error) {
	ne, err := n.resolveEnd(ref.EndRef)
	if err != nil {
		return LaneEnd{}, err
	}
	return ne.Lane(ref.Lane)
}

func refOf(ne NodeEnd) EndRef { return EndRef{Node: ne.Node.id, End: ne.End} }

func laneRefOf(le LaneEnd) LaneRef {
	return LaneRef{EndRef: refOf(le.NodeEnd()), Lane: le.Lane.index}
}
