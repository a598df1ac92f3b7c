package event

import "github.com/aretw0/tapestry/pkg/domain"

// Kind classifies a model change.
type Kind string

const (
	Created          Kind = "created"
	Deleted          Kind = "deleted"
	PropertyChanged  Kind = "property_changed"
	Moved            Kind = "moved"
	Connected        Kind = "connected"
	Disconnected     Kind = "disconnected"
	SelectionChanged Kind = "selection_changed"
)

// Origin tells which engine operation produced a batch.
type Origin string

const (
	OriginExecute   Origin = "execute"
	OriginUndo      Origin = "undo"
	OriginRedo      Origin = "redo"
	OriginSelection Origin = "selection"
)

// Delta describes one applied change.
//
// Created/Deleted carry the node in Value; Connected/Disconnected carry the
// connection. PropertyChanged and Moved carry the new Value and the Previous one.
// SelectionChanged carries the resulting selection.
type Delta struct {
	Kind       Kind                `json:"kind"`
	Node       domain.NodeID       `json:"node,omitempty"`
	Connection domain.ConnectionID `json:"connection,omitempty"`
	Key        string              `json:"key,omitempty"`
	Value      any                 `json:"value,omitempty"`
	Previous   any                 `json:"previous,omitempty"`

	Nodes       []domain.NodeID       `json:"nodes,omitempty"`
	Connections []domain.ConnectionID `json:"connections,omitempty"`
}

// Batch is the unit of delivery: every delta of one execute, undo or redo.
type Batch struct {
	Seq    uint64  `json:"seq"`
	Origin Origin  `json:"origin"`
	Label  string  `json:"label,omitempty"`
	Deltas []Delta `json:"deltas"`
}

// Has reports whether the batch carries a delta of kind k.
func (b Batch) Has(k Kind) bool {
	for _, d := range b.Deltas {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// Filter returns a copy of the batch holding only the given kinds.
// With no kinds the batch is returned as is.
func (b Batch) Filter(kinds ...Kind) Batch {
	if len(kinds) == 0 {
		return b
	}
	out := b
	out.Deltas = nil
	for _, d := range b.Deltas {
		for _, k := range kinds {
			if d.Kind == k {
				out.Deltas = append(out.Deltas, d)
				break
			}
		}
	}
	return out
}

// Coalesce merges runs of PropertyChanged deltas on the same (node, key)
// into one delta carrying the first Previous and the last Value.
func Coalesce(deltas []Delta) []Delta {
	if len(deltas) < 2 {
		return deltas
	}
	out := make([]Delta, 0, len(deltas))
	for _, d := range deltas {
		if n := len(out); n > 0 && d.Kind == PropertyChanged {
			last := &out[n-1]
			if last.Kind == PropertyChanged && last.Node == d.Node && last.Key == d.Key {
				last.Value = d.Value
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
