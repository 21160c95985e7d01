// Package kernel holds the geometry primitives shared by the mesh builders
// and the picker: flat triangle meshes carrying a tag per triangle, rays,
// and the bounding volume hierarchy that accelerates ray queries.
//
// Nothing in this package knows about the road network. Tags are opaque
// values chosen by whoever builds the mesh.
package kernel

// Source is anything that can hand out a mesh on demand. Implementations
// build lazily and return the same mesh until it is invalidated.
type Source interface {
	Mesh() *Mesh
}
