/*
Package ports defines the driven ports (interfaces) of the editor core.

These interfaces decouple persistence and coordination from concrete
backends, so a document can be saved to the local filesystem, kept in
memory for tests, or mirrored to Redis as a remote autosave slot.

# Key Interfaces

  - DocumentStore: stores the graph and layout sections of a document under a key.
  - DistributedLocker: serializes access to a document across editor instances.
*/
package ports
