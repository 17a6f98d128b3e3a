package testfixtures

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/attendance-tracker/internal/docstore"
	"github.com/example/attendance-tracker/internal/docstore/memory"
	"github.com/example/attendance-tracker/internal/docstore/sqlite"
)

// NewMemoryStore returns an in-memory store closed when the test ends.
func NewMemoryStore(tb testing.TB) *memory.Store {
	tb.Helper()
	store := memory.New()
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// NewSQLiteStore opens a migrated store in a temporary file. The store is
// closed when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "attendance.db")

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// PlainStore hides every optional interface of store, leaving only
// docstore.Store. Services then fall back to check-then-act writes.
func PlainStore(store docstore.Store) docstore.Store {
	return plainStore{Store: store}
}

type plainStore struct {
	docstore.Store
}

// WriteOp names a store mutation.
type WriteOp string

const (
	OpSet    WriteOp = "set"
	OpUpdate WriteOp = "update"
	OpCreate WriteOp = "create"
)

// Write records one attempted mutation.
type Write struct {
	Op     WriteOp
	Path   string
	Fields docstore.Fields
}

// ErrCreateUnsupported is returned by CountingStore.CreateDoc when the wrapped
// store cannot create conditionally.
var ErrCreateUnsupported = errors.New("testfixtures: wrapped store has no CreateDoc")

// CountingStore wraps a store, records every attempted write and can inject
// failures into subscriptions and writes.
type CountingStore struct {
	inner docstore.Store

	mu            sync.Mutex
	writes        []Write
	reads         int
	opened        int
	closed        int
	failSubscribe map[string]error
	failWrites    error
}

var (
	_ docstore.Store   = (*CountingStore)(nil)
	_ docstore.Creator = (*CountingStore)(nil)
	_ docstore.Lister  = (*CountingStore)(nil)
)

// NewCountingStore wraps inner.
func NewCountingStore(inner docstore.Store) *CountingStore {
	return &CountingStore{inner: inner, failSubscribe: make(map[string]error)}
}

// Writes returns the attempted writes in call order.
func (s *CountingStore) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// WriteCount returns the number of attempted writes.
func (s *CountingStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// Reads returns the number of GetDoc calls.
func (s *CountingStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// OpenSubscriptions returns subscriptions opened through the wrapper and not yet closed.
func (s *CountingStore) OpenSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

// FailSubscribe makes SubscribeCollection on collectionPath fail with err.
// A nil err clears the failure.
func (s *CountingStore) FailSubscribe(collectionPath string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSubscribe, collectionPath)
		return
	}
	s.failSubscribe[collectionPath] = err
}

// FailWrites makes every later write fail with err after it is recorded.
// A nil err clears the failure.
func (s *CountingStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

func (s *CountingStore) record(op WriteOp, path string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, Write{Op: op, Path: path, Fields: fields.Clone()})
	return s.failWrites
}

// SubscribeCollection implements docstore.Store.
func (s *CountingStore) SubscribeCollection(ctx context.Context, collectionPath string, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Subscription, error) {
	s.mu.Lock()
	err := s.failSubscribe[collectionPath]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sub, err := s.inner.SubscribeCollection(ctx, collectionPath, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &countedSubscription{Subscription: sub, owner: s}, nil
}

// GetDoc implements docstore.Store.
func (s *CountingStore) GetDoc(ctx context.Context, path string) (docstore.Document, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.inner.GetDoc(ctx, path)
}

// SetDoc implements docstore.Store.
func (s *CountingStore) SetDoc(ctx context.Context, path string, fields docstore.Fields, opts docstore.SetOptions) error {
	if err := s.record(OpSet, path, fields); err != nil {
		return err
	}
	return s.inner.SetDoc(ctx, path, fields, opts)
}

// UpdateDoc implements docstore.Store.
func (s *CountingStore) UpdateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	if err := s.record(OpUpdate, path, fields); err != nil {
		return err
	}
	return s.inner.UpdateDoc(ctx, path, fields)
}

// CreateDoc implements docstore.Creator when the wrapped store does.
func (s *CountingStore) CreateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	if err := s.record(OpCreate, path, fields); err != nil {
		return err
	}
	creator, ok := s.inner.(docstore.Creator)
	if !ok {
		return ErrCreateUnsupported
	}
	return creator.CreateDoc(ctx, path, fields)
}

// ListCollection implements docstore.Lister when the wrapped store does.
func (s *CountingStore) ListCollection(ctx context.Context, collectionPath string) ([]docstore.Document, error) {
	lister, ok := s.inner.(docstore.Lister)
	if !ok {
		return nil, docstore.ErrUnavailable
	}
	return lister.ListCollection(ctx, collectionPath)
}

type countedSubscription struct {
	docstore.Subscription
	owner *CountingStore
	once  sync.Once
}

func (c *countedSubscription) Close() {
	c.once.Do(func() {
		c.Subscription.Close()
		c.owner.mu.Lock()
		c.owner.closed++
		c.owner.mu.Unlock()
	})
}
