// Package docstore defines the document-store collaborator used by the
// attendance tracker.
//
// Documents live at slash separated paths that alternate collection and
// document segments:
//
//   - users/{userId}
//   - users/{userId}/attendance/{date}
//   - users/{userId}/leaveRequests/{date}
//
// A Store answers one-shot reads, applies atomic single-document writes and
// serves live collection queries. A live query delivers the complete
// current content of the collection once when it is opened and again after
// every committed write that touches the collection. Snapshots are
// replacements, never deltas.
//
// Two backends are provided: memory (process local, used by tests and the
// in-memory deployment mode) and sqlite (durable, backed by
// modernc.org/sqlite). Both fan out notifications through Notifier.
package docstore
