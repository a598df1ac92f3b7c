// Package event implements the change notification bus between the document
// model and its views.
//
// A Batch groups the deltas of one engine operation and is delivered whole.
// Within a batch, consecutive property changes on the same (node, key) are
// coalesced; deltas are never merged across batches.
package event
