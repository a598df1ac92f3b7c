/*
Package session opens and saves documents for an editing session.

Restore brings back the last saved document of a key together with its
layout. A missing or corrupt document never fails the startup: the session
falls back to the autosave recovery copy when one is valid, and otherwise to
an empty document with the default layout. Every fallback is logged.

Access to a key is serialized in process by a reference-counted mutex and,
when a DistributedLocker is configured, across editor instances.
*/
package session
