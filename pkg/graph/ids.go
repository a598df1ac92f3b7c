package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator allocates fresh identifiers for nodes and connections.
type IDGenerator func() string

// UUIDs is the default generator.
func UUIDs() IDGenerator {
	return uuid.NewString
}

// SequentialIDs returns a deterministic generator yielding prefix-1, prefix-2, ...
func SequentialIDs(prefix string) IDGenerator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
