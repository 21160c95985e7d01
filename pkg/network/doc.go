// Package network is the topology model of a road network: oriented nodes
// carrying ordered lanes, strips joining pairs of node-ends, the per-lane
// lane-strips inside them, and junction sections.
//
// A Network owns every entity. Relationship objects are the only writers of
// back-references: a LaneStrip registers itself with the lanes it touches
// and a Strip with the node-ends it joins. Everyone else sees read-only
// copies.
//
// Meshes are built on first read and cached on the owning entity. Mutators
// drop exactly the cached meshes their change affects, so many edits
// followed by one render pay for one rebuild per touched entity.
//
// A Network is not safe for concurrent use.
package network
