// Package track records why a simulated value is constant.
//
// A Graph is an arena of provenance nodes addressed by NodeID. Each tracked
// Value decorates an interpreter value with:
//   - the instructions that produced it, which a fold may turn into NOPs
//   - anchors, instructions it depends on that must stay (local stores)
//   - parent links to the operands it was derived from
//   - clone links to stack duplicates of the same logical value
//
// Every walk keeps a visited set, so shared and revisited nodes are safe.
package track
