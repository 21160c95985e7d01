package kernel

import (
	"math"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// LeafSize is the triangle count at or below which a BVH node becomes a
// leaf.
const LeafSize = 4

// bvhNode is one node of the flattened hierarchy. Leaves have left == -1
// and cover tris[first:first+count].
type bvhNode struct {
	box         sdf.Box3
	left, right int32 // child node indices, -1 for leaves
	first       int32 // first entry in BVH.tris for leaves
	count       int32 // number of triangles in a leaf
}

// BVH is a bounding volume hierarchy over the triangles of one mesh.
// It is immutable once built, so concurrent queries are safe.
type BVH struct {
	mesh  *Mesh
	nodes []bvhNode
	tris  []int32     // triangle indices, grouped by leaf
	verts [][3]v3.Vec // triangle corners in the same order as tris
}

// queryStats counts the work done by one query.
type queryStats struct {
	nodesVisited    int
	trianglesTested int
}

// NewBVH builds a hierarchy over every triangle of m. Nodes are split at
// the median triangle centroid along the widest axis of the centroid
// bounds.
func NewBVH(m *Mesh) *BVH {
	n := m.TriangleCount()
	b := &BVH{mesh: m, tris: make([]int32, n)}
	if n == 0 {
		return b
	}

	corners := make([][3]v3.Vec, n)
	centroids := make([]v3.Vec, n)
	for i := 0; i < n; i++ {
		tri := m.Triangle(i)
		corners[i] = tri
		centroids[i] = tri[0].Add(tri[1]).Add(tri[2]).DivScalar(3)
		b.tris[i] = int32(i)
	}

	b.nodes = make([]bvhNode, 0, 2*n/LeafSize+1)
	b.build(b.tris, 0, corners, centroids)

	b.verts = make([][3]v3.Vec, n)
	for i, t := range b.tris {
		b.verts[i] = corners[t]
	}
	return b
}

// build creates the node covering tris (which starts at offset in b.tris)
// and returns its index.
func (b *BVH) build(tris []int32, offset int, corners [][3]v3.Vec, centroids []v3.Vec) int32 {
	box := emptyBox()
	cbox := emptyBox()
	for _, t := range tris {
		for _, p := range corners[t] {
			box = include(box, p)
		}
		cbox = include(cbox, centroids[t])
	}

	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, bvhNode{box: box, left: -1, right: -1})

	if len(tris) <= LeafSize {
		b.nodes[idx].first = int32(offset)
		b.nodes[idx].count = int32(len(tris))
		return idx
	}

	axis := widestAxis(cbox)
	sort.Slice(tris, func(i, j int) bool {
		return component(centroids[tris[i]], axis) < component(centroids[tris[j]], axis)
	})

	mid := len(tris) / 2
	left := b.build(tris[:mid], offset, corners, centroids)
	right := b.build(tris[mid:], offset+mid, corners, centroids)
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx
}

// Bounds returns the root bounding box. An empty hierarchy has an inverted
// box.
func (b *BVH) Bounds() sdf.Box3 {
	if len(b.nodes) == 0 {
		return emptyBox()
	}
	return b.nodes[0].box
}

// Intersect returns the nearest hit along r.
func (b *BVH) Intersect(r Ray) (Hit, bool) {
	var st queryStats
	return b.intersect(r, &st)
}

func (b *BVH) intersect(r Ray, st *queryStats) (Hit, bool) {
	best := math.Inf(1)
	bestTri := int32(-1)
	if len(b.nodes) == 0 {
		return Hit{}, false
	}

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &b.nodes[ni]
		st.nodesVisited++

		entry, ok := IntersectBox(r, node.box)
		if !ok || entry >= best {
			continue
		}

		if node.left < 0 {
			for k := node.first; k < node.first+node.count; k++ {
				st.trianglesTested++
				tri := b.verts[k]
				if d, ok := IntersectTriangle(r, tri[0], tri[1], tri[2]); ok && d < best {
					best, bestTri = d, b.tris[k]
				}
			}
			continue
		}
		stack = append(stack, node.right, node.left)
	}

	if bestTri < 0 {
		return Hit{}, false
	}
	return Hit{
		Distance: best,
		Point:    r.At(best),
		Triangle: int(bestTri),
		Tag:      b.mesh.Tag(int(bestTri)),
	}, true
}

func widestAxis(box sdf.Box3) int {
	ext := box.Max.Sub(box.Min)
	switch {
	case ext.Y > ext.X && ext.Y >= ext.Z:
		return 1
	case ext.Z > ext.X && ext.Z > ext.Y:
		return 2
	default:
		return 0
	}
}

func component(v v3.Vec, axis int) float64 {
	switch axis {
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		return v.X
	}
}
