// Package tessellate walks a road network and collects one triangle mesh
// per renderable entity: node lane pads, strips and junction sections.
package tessellate

import (
	"fmt"
	"image/color"
	"math"

	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/network"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind says which entity a part was built from.
type Kind int

const (
	KindNode Kind = iota
	KindStrip
	KindSection
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindStrip:
		return "strip"
	case KindSection:
		return "section"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Part is one renderable mesh and the entity it came from.
type Part struct {
	Name  string
	Kind  Kind
	Mesh  *kernel.Mesh
	Color color.NRGBA // base color: first lane, first lane-strip or section
}

// Tessellate returns a part for every entity with geometry, in the order
// network.Sources lists them. Stale meshes are rebuilt; fresh ones are
// returned as cached. Entities without geometry, such as a node with no
// lanes or a strip with no lane-strips, produce no part.
func Tessellate(net *network.Network) ([]Part, error) {
	if net == nil {
		return nil, nil
	}

	var parts []Part
	for _, src := range net.Sources() {
		p, err := part(src)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %w", err)
		}
		if p.Mesh == nil || p.Mesh.IsEmpty() {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func part(src kernel.Source) (Part, error) {
	switch e := src.(type) {
	case *network.Node:
		p := Part{Name: e.String(), Kind: KindNode, Mesh: e.Mesh()}
		if lanes := e.Lanes(); len(lanes) > 0 {
			p.Color = lanes[0].Spec().Color
		}
		return p, nil
	case *network.Strip:
		p := Part{Name: e.String(), Kind: KindStrip, Mesh: e.Mesh()}
		if ls := e.LaneStrips(); len(ls) > 0 {
			p.Color = ls[0].Spec().Color
		}
		return p, nil
	case *network.Section:
		return Part{Name: e.String(), Kind: KindSection, Mesh: e.Mesh(), Color: e.Color()}, nil
	default:
		return Part{}, fmt.Errorf("unsupported mesh source %T", src)
	}
}

// Meshes returns the meshes of parts in order.
func Meshes(parts []Part) []*kernel.Mesh {
	out := make([]*kernel.Mesh, len(parts))
	for i, p := range parts {
		out[i] = p.Mesh
	}
	return out
}

// Stats summarizes a tessellation.
type Stats struct {
	Parts     int
	Vertices  int
	Triangles int
	ByKind    map[Kind]int
	Bounds    sdf.Box3 // zero when there are no parts
}

// Summarize counts the geometry in parts and bounds it.
func Summarize(parts []Part) Stats {
	st := Stats{Parts: len(parts), ByKind: make(map[Kind]int)}
	inf := math.Inf(1)
	box := sdf.Box3{Min: v3.Vec{X: inf, Y: inf, Z: inf}, Max: v3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, p := range parts {
		st.Vertices += p.Mesh.VertexCount()
		st.Triangles += p.Mesh.TriangleCount()
		st.ByKind[p.Kind]++
		b := p.Mesh.Bounds()
		box = sdf.Box3{Min: box.Min.Min(b.Min), Max: box.Max.Max(b.Max)}
	}
	if len(parts) > 0 {
		st.Bounds = box
	}
	return st
}
