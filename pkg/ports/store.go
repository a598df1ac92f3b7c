package ports

import "context"

// Section names one independently stored part of a document.
type Section string

const (
	// SectionGraph holds nodes, connections, properties and positions.
	SectionGraph Section = "graph"
	// SectionLayout holds window and panel state.
	SectionLayout Section = "layout"
)

// Sections lists every section a store must handle.
var Sections = []Section{SectionGraph, SectionLayout}

// DocumentStore persists the encoded sections of documents.
// Sections are written independently so one can be lost or corrupted
// without affecting the other.
type DocumentStore interface {
	// Write replaces the section atomically: readers see either the previous
	// content or the new one, never a partial write.
	Write(ctx context.Context, key string, section Section, data []byte) error

	// Read returns the section content.
	// Returns domain.ErrDocumentNotFound if the section was never written.
	Read(ctx context.Context, key string, section Section) ([]byte, error)

	// Delete removes every section of the document. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys that have a graph section.
	List(ctx context.Context) ([]string, error)
}
