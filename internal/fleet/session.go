package fleet

import (
	"sync"

	"github.com/example/attendance-tracker/internal/docstore"
)

type eventKind int

const (
	usersSnapshot eventKind = iota
	attendanceSnapshot
	leaveSnapshot
	queryFailed
	barrier
)

// event is one store notification waiting to be applied.
type event struct {
	kind   eventKind
	userID string
	token  uint64
	docs   []docstore.Document
	err    error
	done   chan struct{}
}

// session is the event loop of one Start/Stop cycle. Callbacks of queries
// opened during the session enqueue into it and never block on the
// aggregator's state lock.
type session struct {
	id         string
	generation uint64

	mu    sync.Mutex
	queue []event

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSession(id string, generation uint64) *session {
	return &session{
		id:         id,
		generation: generation,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *session) enqueue(ev event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) drain() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.queue
	s.queue = nil
	return events
}

func (s *session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *session) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// run applies queued events until the session is closed. Barriers still
// queued at that point are released.
func (s *session) run(apply func(*session, event)) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			for _, ev := range s.drain() {
				if ev.kind == barrier {
					close(ev.done)
				}
			}
			return
		case <-s.wake:
		}

		for {
			events := s.drain()
			if len(events) == 0 {
				break
			}
			for _, ev := range events {
				apply(s, ev)
			}
		}
	}
}
