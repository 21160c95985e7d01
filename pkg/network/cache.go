package network

import "github.com/chazu/lanegraph/pkg/kernel"

// built reports a lazy mesh rebuild.
func (n *Network) built(e Event, m *kernel.Mesh) {
	n.log.Debug().
		Str("mesh", m.Name).
		Int("vertices", m.VertexCount()).
		Int("triangles", m.TriangleCount()).
		Msg("mesh built")
	n.emit(e)
}

// Meshes returns every renderable mesh of the network, rebuilding stale
// ones: node pads, then strips, then sections, each in creation order.
func (n *Network) Meshes() []*kernel.Mesh {
	meshes := make([]*kernel.Mesh, 0, len(n.nodes)+len(n.strips)+len(n.sections))
	for _, s := range n.Sources() {
		meshes = append(meshes, s.Mesh())
	}
	return meshes
}

// Sources returns every entity that owns a mesh, in the order Meshes uses.
func (n *Network) Sources() []kernel.Source {
	srcs := make([]kernel.Source, 0, len(n.nodes)+len(n.strips)+len(n.sections))
	for _, node := range n.nodes {
		srcs = append(srcs, node)
	}
	for _, s := range n.strips {
		srcs = append(srcs, s)
	}
	for _, sec := range n.sections {
		srcs = append(srcs, sec)
	}
	return srcs
}

// Invalidate drops every cached mesh in the network.
func (n *Network) Invalidate() {
	for _, node := range n.nodes {
		node.mesh = nil
	}
	for _, s := range n.strips {
		s.invalidateAll()
	}
	for _, sec := range n.sections {
		sec.invalidate()
	}
}
