package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager orchestrates scanning and executing migrations.
type Manager struct {
	scanner  *FileScanner
	executor *SQLiteExecutor
	logger   *slog.Logger
}

// NewManager creates a migration manager. A nil logger discards output.
func NewManager(scanner *FileScanner, executor *SQLiteExecutor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With(slog.String("component", "migration")),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", slog.Any("error", err))
		return err
	}

	m.logger.InfoContext(ctx, "migration status",
		slog.String("current_version", status.CurrentVersion),
		slog.Int("pending", status.PendingCount),
	)
	if status.PendingCount == 0 {
		return nil
	}

	for i, migration := range status.PendingMigrations {
		m.logger.InfoContext(ctx, "executing migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("index", i+1),
			slog.Int("total", status.PendingCount),
		)

		migrationStart := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				slog.String("version", migration.Version),
				slog.String("file", migration.FilePath),
				slog.Any("error", err),
			)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration completed",
			slog.String("version", migration.Version),
			slog.Duration("duration", time.Since(migrationStart)),
		)
	}

	m.logger.InfoContext(ctx, "all migrations completed",
		slog.Int("count", status.PendingCount),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}

// Status compares the scanned files with the applied versions. An applied
// file whose checksum changed is reported as ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		version, _ := strconv.Atoi(a.Version)
		appliedByVersion[version] = a
	}

	status := &Status{AppliedMigrations: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}

	for _, migration := range available {
		version, _ := strconv.Atoi(migration.Version)
		a, ok := appliedByVersion[version]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
			continue
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	status.PendingCount = len(status.PendingMigrations)

	return status, nil
}
