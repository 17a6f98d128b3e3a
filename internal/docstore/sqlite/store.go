// Package sqlite provides a durable docstore.Store on SQLite. Documents are
// kept in a single table keyed by path with their fields encoded as CBOR.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/example/attendance-tracker/internal/docstore"
	"github.com/example/attendance-tracker/internal/docstore/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a docstore.Store backed by a SQLite database file.
type Store struct {
	pool     *ConnectionPool
	retry    *RetryHelper
	mapper   *ErrorMapper
	notifier *docstore.Notifier
	logger   *slog.Logger
	now      func() time.Time
	closed   atomic.Bool
}

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Creator = (*Store)(nil)
	_ docstore.Lister  = (*Store)(nil)
)

// Open connects to the database described by cfg. Call Migrate before the
// first read or write on a fresh database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	mapper := NewErrorMapper()
	return &Store{
		pool:     pool,
		retry:    NewRetryHelper(cfg.Retry, mapper),
		mapper:   mapper,
		notifier: docstore.NewNotifier(),
		logger:   logger.With(slog.String("component", "docstore.sqlite")),
		now:      time.Now,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// Close terminates every live query with docstore.ErrUnavailable and closes
// the connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.notifier.Fail(fmt.Errorf("%w: store closed", docstore.ErrUnavailable))
	return s.pool.Close()
}

// --- reads ---

// GetDoc returns the document at path.
func (s *Store) GetDoc(ctx context.Context, path string) (docstore.Document, error) {
	_, id, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return docstore.Document{}, err
	}
	if err := s.checkOpen(); err != nil {
		return docstore.Document{}, err
	}

	var raw []byte
	row := s.pool.DB().QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, path)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, s.mapper.MapError(err)
	}

	fields, err := docstore.DecodeFields(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Path: path, Fields: fields}, nil
}

// ListCollection returns the direct children of a collection ordered by id.
func (s *Store) ListCollection(ctx context.Context, collectionPath string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	return s.load(ctx, collectionPath)()
}

func (s *Store) load(ctx context.Context, collectionPath string) docstore.LoadFunc {
	return func() ([]docstore.Document, error) {
		if err := s.checkOpen(); err != nil {
			return nil, err
		}

		rows, err := s.pool.DB().QueryContext(ctx,
			`SELECT doc_id, path, fields FROM documents WHERE collection = ? ORDER BY doc_id`,
			collectionPath)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		defer rows.Close()

		docs := make([]docstore.Document, 0)
		for rows.Next() {
			var (
				doc docstore.Document
				raw []byte
			)
			if err := rows.Scan(&doc.ID, &doc.Path, &raw); err != nil {
				return nil, s.mapper.MapError(err)
			}
			if doc.Fields, err = docstore.DecodeFields(raw); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		if err := rows.Err(); err != nil {
			return nil, s.mapper.MapError(err)
		}
		return docs, nil
	}
}

// SubscribeCollection opens a live query on a collection. Snapshots are
// re-read from the database after every write made through this Store.
func (s *Store) SubscribeCollection(ctx context.Context, collectionPath string, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Subscription, error) {
	if err := docstore.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Later loads run on writers' goroutines, long after ctx may be gone.
	return s.notifier.Attach(collectionPath, onSnapshot, onError, s.load(context.WithoutCancel(ctx), collectionPath))
}

// --- writes ---

// SetDoc creates or replaces the document at path. With opts.Merge the
// written fields are overlaid on the existing document.
func (s *Store) SetDoc(ctx context.Context, path string, fields docstore.Fields, opts docstore.SetOptions) error {
	return s.write(ctx, path, func(tx *sql.Tx, collection, id string) error {
		next := fields
		if opts.Merge {
			existing, found, err := readFields(ctx, tx, path)
			if err != nil {
				return err
			}
			if found {
				next = docstore.MergeFields(existing, fields)
			}
		}
		return s.upsert(ctx, tx, path, collection, id, next)
	})
}

// UpdateDoc overlays fields on an existing document.
func (s *Store) UpdateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	return s.write(ctx, path, func(tx *sql.Tx, collection, id string) error {
		existing, found, err := readFields(ctx, tx, path)
		if err != nil {
			return err
		}
		if !found {
			return docstore.ErrNotFound
		}
		return s.upsert(ctx, tx, path, collection, id, docstore.MergeFields(existing, fields))
	})
}

// CreateDoc stores the document only when path is vacant.
func (s *Store) CreateDoc(ctx context.Context, path string, fields docstore.Fields) error {
	return s.write(ctx, path, func(tx *sql.Tx, collection, id string) error {
		encoded, err := docstore.EncodeFields(fields)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (path, collection, doc_id, fields, updated_at) VALUES (?, ?, ?, ?, ?)`,
			path, collection, id, encoded, s.timestamp())
		return err
	})
}

// DeleteDoc removes the document at path. Sub-collections are left in place.
func (s *Store) DeleteDoc(ctx context.Context, path string) error {
	return s.write(ctx, path, func(tx *sql.Tx, _, _ string) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
}

type writeFunc func(tx *sql.Tx, collection, id string) error

// write runs fn in a retried transaction and publishes the parent collection
// once the transaction has committed.
func (s *Store) write(ctx context.Context, path string, fn writeFunc) error {
	collection, id, err := docstore.SplitDocumentPath(path)
	if err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	err = s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(tx, collection, id)
		})
	})
	if err != nil {
		s.logger.DebugContext(ctx, "document write failed",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return err
	}

	s.notifier.Publish(collection, s.load(context.WithoutCancel(ctx), collection))
	return nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, path, collection, id string, fields docstore.Fields) error {
	encoded, err := docstore.EncodeFields(fields)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, fields, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		path, collection, id, encoded, s.timestamp())
	return err
}

func readFields(ctx context.Context, tx *sql.Tx, path string) (docstore.Fields, bool, error) {
	var raw []byte
	err := tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	fields, err := docstore.DecodeFields(raw)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", docstore.ErrUnavailable)
	}
	return nil
}
