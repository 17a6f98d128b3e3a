package docstore

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// LoadFunc reads the current content of a collection for delivery.
type LoadFunc func() ([]Document, error)

// Notifier fans collection snapshots out to live queries. Backends call
// Publish after every committed write and Attach when a query is opened.
//
// Deliveries are serialized: a snapshot is loaded and handed to every
// listener of the collection before the next delivery starts, so each
// listener observes snapshots in commit order.
type Notifier struct {
	mu        sync.Mutex
	listeners map[string]map[string]*listener

	deliverMu sync.Mutex
}

// NewNotifier returns an empty listener registry.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[string]map[string]*listener)}
}

type listener struct {
	id         string
	collection string
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	closed     atomic.Bool
	notifier   *Notifier
}

func (l *listener) ID() string {
	return l.id
}

func (l *listener) Close() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	l.notifier.remove(l)
}

// Attach registers a live query and delivers its initial snapshot. When the
// initial load fails the listener is removed and the error returned.
func (n *Notifier) Attach(collection string, onSnapshot SnapshotFunc, onError ErrorFunc, load LoadFunc) (Subscription, error) {
	l := &listener{
		id:         uuid.NewString(),
		collection: collection,
		onSnapshot: onSnapshot,
		onError:    onError,
		notifier:   n,
	}

	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	docs, err := load()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	byID, ok := n.listeners[collection]
	if !ok {
		byID = make(map[string]*listener)
		n.listeners[collection] = byID
	}
	byID[l.id] = l
	n.mu.Unlock()

	if l.onSnapshot != nil {
		l.onSnapshot(CloneDocuments(docs))
	}
	return l, nil
}

// Publish loads the collection once and delivers it to every open listener.
// Nothing is loaded when the collection has no listeners.
func (n *Notifier) Publish(collection string, load LoadFunc) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	targets := n.listenersFor(collection)
	if len(targets) == 0 {
		return
	}

	docs, err := load()
	for _, l := range targets {
		if l.closed.Load() {
			continue
		}
		if err != nil {
			// A failed query terminates, matching the error contract of ErrorFunc.
			l.Close()
			if l.onError != nil {
				l.onError(err)
			}
			continue
		}
		if l.onSnapshot != nil {
			l.onSnapshot(CloneDocuments(docs))
		}
	}
}

// Fail terminates every listener with err. Backends call it on shutdown.
func (n *Notifier) Fail(err error) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	var targets []*listener
	for _, byID := range n.listeners {
		for _, l := range byID {
			targets = append(targets, l)
		}
	}
	n.mu.Unlock()

	for _, l := range targets {
		if !l.closed.CompareAndSwap(false, true) {
			continue
		}
		n.remove(l)
		if l.onError != nil {
			l.onError(err)
		}
	}
}

// Count reports the number of open listeners on a collection.
func (n *Notifier) Count(collection string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners[collection])
}

// Total reports the number of open listeners across all collections.
func (n *Notifier) Total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, byID := range n.listeners {
		total += len(byID)
	}
	return total
}

func (n *Notifier) listenersFor(collection string) []*listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	byID := n.listeners[collection]
	if len(byID) == 0 {
		return nil
	}
	out := make([]*listener, 0, len(byID))
	for _, l := range byID {
		out = append(out, l)
	}
	return out
}

func (n *Notifier) remove(l *listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	byID := n.listeners[l.collection]
	delete(byID, l.id)
	if len(byID) == 0 {
		delete(n.listeners, l.collection)
	}
}
