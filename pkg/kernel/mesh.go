package kernel

import (
	"image/color"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tag identifies the entity a triangle belongs to.
type Tag any

// Mesh is a triangle mesh suitable for rendering and picking.
// All arrays are flat: vertices and normals have 3 floats per vertex,
// UVs 2 and colors 4 (RGBA in [0,1]); indices has 3 uint32s per triangle
// and Tags one entry per triangle.
//
// The arrays are exported for upload by the renderer. Writers must go
// through AddVertex, AddTriangle, Append and Clear so the cached BVH is
// rebuilt on the next query.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	UVs      []float32 `json:"uvs"`      // [u0,v0, ...]
	Colors   []float32 `json:"colors"`   // [r0,g0,b0,a0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Tags     []Tag     `json:"-"`        // one per triangle
	Name     string    `json:"name"`     // which network entity this came from

	dirty bool
	bvh   *BVH
}

// Vertex is one mesh vertex.
type Vertex struct {
	Position v3.Vec
	Normal   v3.Vec
	U, V     float64
	Color    color.NRGBA
}

// NewMesh returns an empty named mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name, dirty: true}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Dirty reports whether the mesh changed since the BVH was last built.
func (m *Mesh) Dirty() bool {
	return m.dirty || m.bvh == nil
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(v Vertex) uint32 {
	idx := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, f32(v.Position.X), f32(v.Position.Y), f32(v.Position.Z))
	m.Normals = append(m.Normals, f32(v.Normal.X), f32(v.Normal.Y), f32(v.Normal.Z))
	m.UVs = append(m.UVs, f32(v.U), f32(v.V))
	m.Colors = append(m.Colors,
		float32(v.Color.R)/255, float32(v.Color.G)/255, float32(v.Color.B)/255, float32(v.Color.A)/255)
	m.dirty = true
	return idx
}

// AddTriangle appends a triangle over three existing vertices.
func (m *Mesh) AddTriangle(a, b, c uint32, tag Tag) {
	m.Indices = append(m.Indices, a, b, c)
	m.Tags = append(m.Tags, tag)
	m.dirty = true
}

// Append copies every vertex and triangle of o into m, keeping tags.
func (m *Mesh) Append(o *Mesh) {
	if o == nil || o.IsEmpty() {
		return
	}
	base := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	m.UVs = append(m.UVs, o.UVs...)
	m.Colors = append(m.Colors, o.Colors...)
	for _, i := range o.Indices {
		m.Indices = append(m.Indices, base+i)
	}
	m.Tags = append(m.Tags, o.Tags...)
	m.dirty = true
}

// Clear removes all geometry but keeps the allocated capacity.
func (m *Mesh) Clear() {
	m.Vertices = m.Vertices[:0]
	m.Normals = m.Normals[:0]
	m.UVs = m.UVs[:0]
	m.Colors = m.Colors[:0]
	m.Indices = m.Indices[:0]
	m.Tags = m.Tags[:0]
	m.dirty = true
}

// Position returns the position of vertex i.
func (m *Mesh) Position(i uint32) v3.Vec {
	j := int(i) * 3
	return v3.Vec{X: float64(m.Vertices[j]), Y: float64(m.Vertices[j+1]), Z: float64(m.Vertices[j+2])}
}

// Triangle returns the corner positions of triangle i.
func (m *Mesh) Triangle(i int) [3]v3.Vec {
	j := i * 3
	return [3]v3.Vec{
		m.Position(m.Indices[j]),
		m.Position(m.Indices[j+1]),
		m.Position(m.Indices[j+2]),
	}
}

// Tag returns the tag of triangle i, or nil when none was recorded.
func (m *Mesh) Tag(i int) Tag {
	if i < 0 || i >= len(m.Tags) {
		return nil
	}
	return m.Tags[i]
}

// Bounds returns the axis-aligned bounding box of every vertex. An empty
// mesh returns an inverted box that contains nothing.
func (m *Mesh) Bounds() sdf.Box3 {
	box := emptyBox()
	for i := 0; i < m.VertexCount(); i++ {
		box = include(box, m.Position(uint32(i)))
	}
	return box
}

// BVH returns the bounding volume hierarchy over the mesh's triangles,
// rebuilding it first if the mesh changed since the last build.
func (m *Mesh) BVH() *BVH {
	if m.Dirty() {
		m.bvh = NewBVH(m)
		m.dirty = false
		logger().Debug().Str("mesh", m.Name).Int("triangles", m.TriangleCount()).Msg("bvh rebuilt")
	}
	return m.bvh
}

// Intersect returns the nearest hit of r against the mesh, using the BVH.
func (m *Mesh) Intersect(r Ray) (Hit, bool) {
	return m.BVH().Intersect(r)
}

// IntersectLinear tests every triangle without the BVH.
func (m *Mesh) IntersectLinear(r Ray) (Hit, bool) {
	best := Hit{Distance: math.Inf(1), Triangle: -1}
	for i := 0; i < m.TriangleCount(); i++ {
		tri := m.Triangle(i)
		if d, ok := IntersectTriangle(r, tri[0], tri[1], tri[2]); ok && d < best.Distance {
			best = Hit{Distance: d, Triangle: i}
		}
	}
	if best.Triangle < 0 {
		return Hit{}, false
	}
	best.Point = r.At(best.Distance)
	best.Tag = m.Tag(best.Triangle)
	return best, true
}

func f32(x float64) float32 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return float32(x)
}

func emptyBox() sdf.Box3 {
	inf := math.Inf(1)
	return sdf.Box3{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

func include(b sdf.Box3, p v3.Vec) sdf.Box3 {
	return sdf.Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func union(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}
