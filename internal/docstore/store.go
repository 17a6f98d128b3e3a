package docstore

import (
	"context"
	"sort"
)

// Fields holds the top-level fields of a document.
type Fields map[string]any

// Clone returns a shallow copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the named field as a string, or "" when absent or not a string.
func (f Fields) String(name string) string {
	value, _ := f[name].(string)
	return value
}

// Document is one stored document.
type Document struct {
	ID     string
	Path   string
	Fields Fields
}

// Clone returns a copy of the document that shares no field map with the receiver.
func (d Document) Clone() Document {
	d.Fields = d.Fields.Clone()
	return d
}

// SetOptions tunes SetDoc.
type SetOptions struct {
	// Merge keeps fields of an existing document that are absent from the write.
	Merge bool
}

// SnapshotFunc receives the full content of a watched collection.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives a terminal error for a live query. No snapshot follows it.
type ErrorFunc func(err error)

// Subscription is a handle on one live collection query.
type Subscription interface {
	// ID identifies the handle in logs.
	ID() string
	// Close stops delivery. Calling Close more than once is a no-op.
	Close()
}

// Store is the document-store collaborator.
//
// Snapshot and error callbacks may run on the writer's goroutine while the
// store holds its delivery lock, so they must not call back into the store.
// Closing a Subscription from inside a callback is allowed.
type Store interface {
	SubscribeCollection(ctx context.Context, collectionPath string, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error)
	GetDoc(ctx context.Context, path string) (Document, error)
	SetDoc(ctx context.Context, path string, fields Fields, opts SetOptions) error
	UpdateDoc(ctx context.Context, path string, fields Fields) error
}

// Creator is implemented by stores that can create a document only when it is
// absent, atomically. CreateDoc returns ErrAlreadyExists otherwise.
type Creator interface {
	CreateDoc(ctx context.Context, path string, fields Fields) error
}

// Lister is implemented by stores that answer one-shot collection reads.
type Lister interface {
	ListCollection(ctx context.Context, collectionPath string) ([]Document, error)
}

// SortDocuments orders documents by id.
func SortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// CloneDocuments deep copies a snapshot so each listener owns its slice.
func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}
