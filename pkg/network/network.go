package network

import (
	"fmt"

	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Network owns every node, strip and section of one road network.
type Network struct {
	log  zerolog.Logger
	opts geometry.Options

	nodes  []*Node
	byID   map[NodeID]*Node
	byName map[string]*Node

	strips     []*Strip
	stripIndex map[stripKey]*Strip

	sections    []*Section
	nextSection int

	subs     map[int]func(Event)
	subOrder []int
	nextSub  int
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger used for rejected mutations and rebuilds.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Network) { n.log = l }
}

// WithGeometry sets the mesh resolution.
func WithGeometry(o geometry.Options) Option {
	return func(n *Network) { n.opts = o.Normalize() }
}

// New returns an empty network.
func New(opts ...Option) *Network {
	n := &Network{
		log:        zerolog.Nop(),
		opts:       geometry.DefaultOptions(),
		byID:       make(map[NodeID]*Node),
		byName:     make(map[string]*Node),
		stripIndex: make(map[stripKey]*Strip),
		subs:       make(map[int]func(Event)),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// GeometryOptions returns the mesh resolution in use.
func (n *Network) GeometryOptions() geometry.Options { return n.opts }

// AddNode creates a node with a fresh ID. name may be empty; a non-empty
// name must be unique within the network.
func (n *Network) AddNode(name string, pose Pose) (*Node, error) {
	return n.addNode(NewNodeID(), name, pose)
}

// AddNodeWithID creates a node under a caller-chosen ID, as when replaying
// saved state.
func (n *Network) AddNodeWithID(id NodeID, name string, pose Pose) (*Node, error) {
	if id.IsZero() {
		return nil, n.reject("add node", fmt.Errorf("network: add node: empty id: %w", ErrUnknownNode))
	}
	return n.addNode(id, name, pose)
}

func (n *Network) addNode(id NodeID, name string, pose Pose) (*Node, error) {
	if _, ok := n.byID[id]; ok {
		return nil, n.reject("add node", fmt.Errorf("network: add node %s: %w", id.Short(), ErrDuplicateNode))
	}
	if name != "" {
		if _, ok := n.byName[name]; ok {
			return nil, n.reject("add node", fmt.Errorf("network: add node: name %q: %w", name, ErrDuplicateNode))
		}
	}
	if err := pose.validate(); err != nil {
		return nil, n.reject("add node", fmt.Errorf("network: add node: %w", err))
	}

	node := &Node{net: n, id: id, name: name, pose: pose}
	n.nodes = append(n.nodes, node)
	n.byID[id] = node
	if name != "" {
		n.byName[name] = node
	}
	n.log.Debug().Str("node", id.Short()).Str("name", name).Msg("node added")
	n.emit(Event{Kind: NodeAdded, Node: node})
	return node, nil
}

// RemoveNode destroys a node, every strip touching either of its ends and
// its membership in every section. Sections left without members are
// destroyed as well.
func (n *Network) RemoveNode(node *Node) error {
	if err := n.owns(node); err != nil {
		return n.reject("remove node", fmt.Errorf("network: remove node: %w", err))
	}

	for _, e := range []End{Front, Back} {
		for _, s := range append([]*Strip(nil), node.strips[e]...) {
			s.destroy()
		}
	}
	for _, sec := range append([]*Section(nil), node.sections...) {
		sec.dropNode(node)
	}
	for _, l := range node.lanes {
		l.destroyed = true
	}

	n.nodes = lo.Without(n.nodes, node)
	delete(n.byID, node.id)
	if node.name != "" {
		delete(n.byName, node.name)
	}
	node.destroyed = true
	node.mesh = nil
	n.log.Debug().Str("node", node.id.Short()).Msg("node removed")
	n.emit(Event{Kind: NodeRemoved, Node: node})
	return nil
}

// Node returns the node with the given ID, or nil.
func (n *Network) Node(id NodeID) *Node { return n.byID[id] }

// Lookup returns the node with the given name, or nil.
func (n *Network) Lookup(name string) *Node { return n.byName[name] }

// Nodes returns every node in creation order.
func (n *Network) Nodes() []*Node { return append([]*Node(nil), n.nodes...) }

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int { return len(n.nodes) }

// Strips returns every strip in creation order.
func (n *Network) Strips() []*Strip { return append([]*Strip(nil), n.strips...) }

// Strip returns the strip joining a and b in either order, or nil.
func (n *Network) Strip(a, b NodeEnd) *Strip {
	if a.Node == nil || b.Node == nil {
		return nil
	}
	return n.stripIndex[keyOf(a, b)]
}

// LaneStrips returns every lane-strip, grouped by strip in creation order.
func (n *Network) LaneStrips() []*LaneStrip {
	return lo.FlatMap(n.strips, func(s *Strip, _ int) []*LaneStrip {
		return s.LaneStrips()
	})
}

// Sections returns every section in creation order.
func (n *Network) Sections() []*Section { return append([]*Section(nil), n.sections...) }

// owns checks that node is a live node of n.
func (n *Network) owns(node *Node) error {
	switch {
	case node == nil:
		return fmt.Errorf("nil node: %w", ErrUnknownNode)
	case node.net != n:
		return fmt.Errorf("node %s: %w", node.id.Short(), ErrForeignEntity)
	case node.destroyed:
		return fmt.Errorf("node %s: %w", node.id.Short(), ErrDestroyed)
	}
	return nil
}

func (n *Network) ownsEnd(ne NodeEnd) error {
	if err := n.owns(ne.Node); err != nil {
		return err
	}
	if ne.End != Front && ne.End != Back {
		return fmt.Errorf("node %s: bad end %d: %w", ne.Node.id.Short(), ne.End, ErrForeignEntity)
	}
	return nil
}

func (n *Network) ownsLaneEnd(le LaneEnd) error {
	if le.Lane == nil {
		return fmt.Errorf("nil lane: %w", ErrIndexOutOfRange)
	}
	if err := n.ownsEnd(le.NodeEnd()); err != nil {
		return err
	}
	if le.Lane.destroyed {
		return fmt.Errorf("lane of node %s: %w", le.Lane.node.id.Short(), ErrDestroyed)
	}
	return nil
}

// reject logs a refused mutation and returns err unchanged.
func (n *Network) reject(op string, err error) error {
	n.log.Debug().Err(err).Str("op", op).Msg("mutation rejected")
	return err
}
