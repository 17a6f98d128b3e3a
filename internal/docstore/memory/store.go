// Package memory provides a process-local docstore.Store backed by maps.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/attendance-tracker/internal/docstore"
)

// Store keeps documents in memory keyed by path.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]docstore.Fields
	closed   bool
	notifier *docstore.Notifier
}

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Creator = (*Store)(nil)
	_ docstore.Lister  = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:     make(map[string]docstore.Fields),
		notifier: docstore.NewNotifier(),
	}
}

// Close terminates every live query with docstore.ErrUnavailable. Later calls
// fail with the same error.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.notifier.Fail(fmt.Errorf("%w: store closed", docstore.ErrUnavailable))
	return nil
}

// Listeners reports how many live queries are open across all collections.
func (s *Store) Listeners() int {
	return s.notifier.Total()
}

// ListenersOn reports how many live queries watch the given collection.
func (s *Store) ListenersOn(collectionPath string) int {
	return s.notifier.Count(collectionPath)
}

// --- reads ---

// GetDoc returns the document at path.
func (s *Store) GetDoc(ctx context.Context, path string) (docstore.Document, error) {
	_, id, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return docstore.Document{}, errClosed()
	}
	fields, ok := s.docs[path]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Path: path, Fields: fields.Clone()}, nil
}

// ListCollection returns the direct children of a collection ordered by id.
func (s *Store) ListCollection(ctx context.Context, collectionPath string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	return s.load(collectionPath)()
}

func (s *Store) load(collectionPath string) docstore.LoadFunc {
	return func() ([]docstore.Document, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		if s.closed {
			return nil, errClosed()
		}
		docs := make([]docstore.Document, 0)
		for path, fields := range s.docs {
			collection, id, err := docstore.SplitDocumentPath(path)
			if err != nil || collection != collectionPath {
				continue
			}
			docs = append(docs, docstore.Document{ID: id, Path: path, Fields: fields.Clone()})
		}
		docstore.SortDocuments(docs)
		return docs, nil
	}
}

// SubscribeCollection opens a live query on a collection.
func (s *Store) SubscribeCollection(ctx context.Context, collectionPath string, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Subscription, error) {
	if err := docstore.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.notifier.Attach(collectionPath, onSnapshot, onError, s.load(collectionPath))
}

// --- writes ---

// SetDoc creates or replaces the document at path. With opts.Merge the
// written fields are overlaid on the existing document.
func (s *Store) SetDoc(ctx context.Context, path string, fields docstore.Fields, opts docstore.SetOptions) error {
	collection, _, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if existing, ok := s.docs[path]; ok && opts.Merge {
		s.docs[path] = docstore.MergeFields(existing, fields)
	} else {
		s.docs[path] = fields.Clone()
	}
	s.mu.Unlock()

	s.notifier.Publish(collection, s.load(collection))
	return nil
}

// UpdateDoc overlays fields on an existing document.
func (s *Store) UpdateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	collection, _, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	existing, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	s.docs[path] = docstore.MergeFields(existing, fields)
	s.mu.Unlock()

	s.notifier.Publish(collection, s.load(collection))
	return nil
}

// CreateDoc stores the document only when path is vacant.
func (s *Store) CreateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	collection, _, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if _, ok := s.docs[path]; ok {
		s.mu.Unlock()
		return docstore.ErrAlreadyExists
	}
	s.docs[path] = fields.Clone()
	s.mu.Unlock()

	s.notifier.Publish(collection, s.load(collection))
	return nil
}

// DeleteDoc removes the document at path. Sub-collections are left in place.
func (s *Store) DeleteDoc(ctx context.Context, path string) error {
	collection, _, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if _, ok := s.docs[path]; !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.docs, path)
	s.mu.Unlock()

	s.notifier.Publish(collection, s.load(collection))
	return nil
}

func errClosed() error {
	return fmt.Errorf("%w: store closed", docstore.ErrUnavailable)
}
