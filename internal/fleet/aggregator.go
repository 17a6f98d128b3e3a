package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/docstore"
)

const tracerName = "github.com/example/attendance-tracker/internal/fleet"

// Config wires an Aggregator to its collaborators.
type Config struct {
	Store  docstore.Store
	Logger *slog.Logger
	// Now stamps ReadModel.RefreshedAt. Defaults to time.Now.
	Now func() time.Time
	// OnError receives query failures. It runs on the aggregator's event
	// goroutine and must not block; it may call Stop or Resubscribe.
	OnError func(ErrorEvent)
	// Tracer defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer
}

// handle is one open per-user query. token tells its notifications apart
// from those of earlier queries for the same user and collection.
type handle struct {
	sub   docstore.Subscription
	token uint64
}

func (h *handle) close() {
	if h != nil && h.sub != nil {
		h.sub.Close()
	}
}

type userEntry struct {
	attendance *handle
	leave      *handle
}

// Aggregator keeps the projection of all users and their records current.
type Aggregator struct {
	store   docstore.Store
	logger  *slog.Logger
	now     func() time.Time
	onError func(ErrorEvent)
	tracer  trace.Tracer

	// applyMu serializes state changes between the event loop, Start, Stop
	// and Resubscribe.
	applyMu    sync.Mutex
	ctx        context.Context
	session    *session
	generation uint64
	nextToken  uint64
	usersSub   docstore.Subscription
	registry   map[string]*userEntry
	model      application.ReadModel

	snapMu   sync.RWMutex
	snapshot application.ReadModel
}

// New constructs an idle aggregator.
func New(cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	empty := application.NewReadModel()
	return &Aggregator{
		store:    cfg.Store,
		logger:   logger.With("component", "fleet.Aggregator"),
		now:      now,
		onError:  cfg.OnError,
		tracer:   tracer,
		registry: make(map[string]*userEntry),
		model:    empty,
		snapshot: empty.Clone(),
	}
}

// Start opens the users query and begins a new session with an empty
// projection. The returned error comes from opening the users query.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("fleet: document store not configured")
	}

	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	if a.session != nil {
		return ErrAlreadyRunning
	}

	a.generation++
	s := newSession(uuid.NewString(), a.generation)
	a.ctx = context.WithoutCancel(ctx)
	a.registry = make(map[string]*userEntry)
	a.model = application.NewReadModel()
	a.publishLocked()

	go s.run(a.apply)

	sub, err := a.store.SubscribeCollection(a.ctx, docstore.UsersCollection,
		func(docs []docstore.Document) {
			s.enqueue(event{kind: usersSnapshot, docs: docs})
		},
		func(err error) {
			s.enqueue(event{kind: queryFailed, err: err})
		},
	)
	if err != nil {
		s.close()
		a.generation++
		return fmt.Errorf("fleet: open users query: %w", err)
	}

	a.session = s
	a.usersSub = sub
	a.logger.InfoContext(ctx, "aggregator started", "session_id", s.id)
	return nil
}

// Stop closes every open query and clears the projection. No notification
// is applied once Stop returns. Stop is safe to call at any time, more than
// once, and from an OnError callback.
func (a *Aggregator) Stop() {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	s := a.session
	if s == nil {
		return
	}

	a.generation++
	a.session = nil
	if a.usersSub != nil {
		a.usersSub.Close()
		a.usersSub = nil
	}
	for _, entry := range a.registry {
		entry.attendance.close()
		entry.leave.close()
	}
	a.registry = make(map[string]*userEntry)
	a.model = application.NewReadModel()
	a.publishLocked()
	s.close()

	a.logger.Info("aggregator stopped", "session_id", s.id)
}

// Running reports whether a session is active.
func (a *Aggregator) Running() bool {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()
	return a.session != nil
}

// Snapshot returns a deep copy of the current projection.
func (a *Aggregator) Snapshot() application.ReadModel {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.snapshot.Clone()
}

// Subscriptions returns the number of open queries, including the users query.
func (a *Aggregator) Subscriptions() int {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	count := 0
	if a.usersSub != nil {
		count++
	}
	for _, entry := range a.registry {
		if entry.attendance != nil {
			count++
		}
		if entry.leave != nil {
			count++
		}
	}
	return count
}

// Resubscribe opens whichever per-user queries of userID are not open, for
// example after they failed to open or were terminated by the store.
func (a *Aggregator) Resubscribe(userID string) error {
	a.applyMu.Lock()
	if a.session == nil {
		a.applyMu.Unlock()
		return ErrNotRunning
	}
	entry, ok := a.registry[userID]
	if !ok {
		a.applyMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	failures := a.openMissingLocked(a.session, userID, entry)
	a.applyMu.Unlock()

	a.report(failures)
	errs := make([]error, 0, len(failures))
	for _, failure := range failures {
		errs = append(errs, failure.Err)
	}
	return errors.Join(errs...)
}

// Flush blocks until every notification queued so far, and every
// notification those produce, has been applied. It returns immediately when
// the aggregator is not running.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.applyMu.Lock()
	s := a.session
	a.applyMu.Unlock()
	if s == nil {
		return nil
	}

	done := make(chan struct{})
	s.enqueue(event{kind: barrier, done: done})
	select {
	case <-done:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply runs on the session goroutine.
func (a *Aggregator) apply(s *session, ev event) {
	if ev.kind == barrier {
		// Notifications produced while applying earlier events are queued
		// behind the barrier; wait for them too.
		if s.pending() > 0 {
			s.enqueue(ev)
			return
		}
		close(ev.done)
		return
	}

	a.applyMu.Lock()
	if s.generation != a.generation {
		a.applyMu.Unlock()
		return
	}

	var failures []ErrorEvent
	changed := false
	switch ev.kind {
	case usersSnapshot:
		failures = a.reconcileLocked(s, ev.docs)
		changed = true
	case attendanceSnapshot:
		if entry := a.registry[ev.userID]; entry != nil && entry.attendance != nil && entry.attendance.token == ev.token {
			a.model.Attendance[ev.userID] = attendanceSet(ev.docs)
			changed = true
		}
	case leaveSnapshot:
		if entry := a.registry[ev.userID]; entry != nil && entry.leave != nil && entry.leave.token == ev.token {
			a.model.Leave[ev.userID] = leaveSet(ev.docs)
			changed = true
		}
	case queryFailed:
		if failure, ok := a.dropFailedLocked(ev); ok {
			failures = append(failures, failure)
		}
	}
	if changed {
		a.publishLocked()
	}
	a.applyMu.Unlock()

	a.report(failures)
}

// reconcileLocked diffs the users snapshot against the registry, closing
// the queries of removed users and opening them for added users.
func (a *Aggregator) reconcileLocked(s *session, docs []docstore.Document) []ErrorEvent {
	users := userSet(docs)

	_, span := a.tracer.Start(a.ctx, "Aggregator.reconcile", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.Int("users", len(users)),
	))
	defer span.End()

	removed := 0
	for id, entry := range a.registry {
		if _, ok := users[id]; ok {
			continue
		}
		entry.attendance.close()
		entry.leave.close()
		delete(a.registry, id)
		delete(a.model.Attendance, id)
		delete(a.model.Leave, id)
		removed++
	}

	var failures []ErrorEvent
	added := 0
	for id := range users {
		if _, ok := a.registry[id]; ok {
			continue
		}
		entry := &userEntry{}
		a.registry[id] = entry
		failures = append(failures, a.openMissingLocked(s, id, entry)...)
		added++
	}

	a.model.Users = users

	span.SetAttributes(
		attribute.Int("users.added", added),
		attribute.Int("users.removed", removed),
		attribute.Int("subscriptions.failed", len(failures)),
	)
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "per-user query failed to open")
	}
	a.logger.Debug("users reconciled",
		"session_id", s.id,
		"users", len(users),
		"added", added,
		"removed", removed,
		"failed", len(failures),
	)
	return failures
}

// openMissingLocked opens the attendance and leave queries of a user that are
// not open yet. Failures leave that part of the projection absent.
func (a *Aggregator) openMissingLocked(s *session, userID string, entry *userEntry) []ErrorEvent {
	var failures []ErrorEvent

	if entry.attendance == nil {
		h, err := a.openLocked(s, userID, docstore.AttendanceCollectionPath(userID), attendanceSnapshot)
		if err != nil {
			failures = append(failures, ErrorEvent{UserID: userID, Collection: docstore.AttendanceCollectionPath(userID), Err: err})
		} else {
			entry.attendance = h
		}
	}
	if entry.leave == nil {
		h, err := a.openLocked(s, userID, docstore.LeaveRequestsCollectionPath(userID), leaveSnapshot)
		if err != nil {
			failures = append(failures, ErrorEvent{UserID: userID, Collection: docstore.LeaveRequestsCollectionPath(userID), Err: err})
		} else {
			entry.leave = h
		}
	}
	return failures
}

func (a *Aggregator) openLocked(s *session, userID, collectionPath string, kind eventKind) (*handle, error) {
	a.nextToken++
	token := a.nextToken

	sub, err := a.store.SubscribeCollection(a.ctx, collectionPath,
		func(docs []docstore.Document) {
			s.enqueue(event{kind: kind, userID: userID, token: token, docs: docs})
		},
		func(err error) {
			s.enqueue(event{kind: queryFailed, userID: userID, token: token, err: err})
		},
	)
	if err != nil {
		return nil, err
	}
	return &handle{sub: sub, token: token}, nil
}

// dropFailedLocked forgets a terminated query so Resubscribe can reopen it.
// The records it delivered stay in the projection.
func (a *Aggregator) dropFailedLocked(ev event) (ErrorEvent, bool) {
	if ev.userID == "" {
		if a.usersSub == nil {
			return ErrorEvent{}, false
		}
		a.usersSub.Close()
		a.usersSub = nil
		return ErrorEvent{Collection: docstore.UsersCollection, Err: ev.err}, true
	}

	entry := a.registry[ev.userID]
	if entry == nil {
		return ErrorEvent{}, false
	}
	switch {
	case entry.attendance != nil && entry.attendance.token == ev.token:
		entry.attendance.close()
		entry.attendance = nil
		return ErrorEvent{UserID: ev.userID, Collection: docstore.AttendanceCollectionPath(ev.userID), Err: ev.err}, true
	case entry.leave != nil && entry.leave.token == ev.token:
		entry.leave.close()
		entry.leave = nil
		return ErrorEvent{UserID: ev.userID, Collection: docstore.LeaveRequestsCollectionPath(ev.userID), Err: ev.err}, true
	}
	return ErrorEvent{}, false
}

// publishLocked swaps in a fresh copy of the projection for readers.
func (a *Aggregator) publishLocked() {
	a.model.Revision++
	a.model.RefreshedAt = a.now()
	snapshot := a.model.Clone()

	a.snapMu.Lock()
	a.snapshot = snapshot
	a.snapMu.Unlock()
}

// report hands failures to the logger and OnError. It runs without applyMu
// held so that OnError may call back into the aggregator.
func (a *Aggregator) report(failures []ErrorEvent) {
	for _, failure := range failures {
		a.logger.Warn("live query failed",
			"user_id", failure.UserID,
			"collection", failure.Collection,
			"error", failure.Err,
		)
		if a.onError != nil {
			a.onError(failure)
		}
	}
}
