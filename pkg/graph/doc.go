// Package graph holds the in-memory document model: nodes, connections and
// the structural rules between them.
//
// The Graph is a passive store. Every mutation returns what the caller needs
// to build the inverse (the prior value, the removed entities with their
// positions in the ordering). History is kept by the command package.
//
// A Graph is not safe for concurrent use. It is mutated from one editing
// context; background work reads a Snapshot taken in that context.
package graph
