// Package persistence saves and restores documents.
//
// A document is stored as two independent sections of a ports.DocumentStore:
// the graph (versioned JSON) and the layout (versioned YAML, see package
// layout). Either section can be missing or corrupt without affecting the
// other. Loading the graph is all or nothing: the caller receives a fully
// valid snapshot or an error wrapping domain.ErrCorruptFile or
// domain.ErrUnsupportedVersion.
//
// The Autosaver keeps a recovery copy of a live document. Snapshots are taken
// in the editing context when a batch is observed and written by a worker.
package persistence
