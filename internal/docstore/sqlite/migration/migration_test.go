package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migration.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFileScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"sql/002_add_index.sql":    {Data: []byte("CREATE INDEX idx_t_name ON t(name);")},
		"sql/001_create_table.sql": {Data: []byte("-- Description: create t\nCREATE TABLE t (name TEXT);")},
		"sql/README.md":            {Data: []byte("ignored")},
		"sql/010_add_column.sql":   {Data: []byte("ALTER TABLE t ADD COLUMN age INTEGER;")},
	}

	migrations, err := NewFileScanner(files, "sql").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Version != "002" || migrations[2].Version != "010" {
		t.Fatalf("unexpected order: %s,%s,%s", migrations[0].Version, migrations[1].Version, migrations[2].Version)
	}
	if migrations[0].Description != "create t" {
		t.Fatalf("expected description from content, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" {
		t.Fatal("expected checksum to be populated")
	}
}

func TestFileScanner_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files fstest.MapFS
		want  error
	}{
		"bad name": {
			files: fstest.MapFS{"create.sql": {Data: []byte("CREATE TABLE t (x TEXT);")}},
			want:  ErrInvalidMigrationFile,
		},
		"duplicate version": {
			files: fstest.MapFS{
				"001_a.sql":  {Data: []byte("CREATE TABLE a (x TEXT);")},
				"0001_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
			},
			want: ErrDuplicateVersion,
		},
		"comments only": {
			files: fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want:  ErrInvalidMigrationFile,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFileScanner(tc.files, ".").ScanMigrations()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestManager_RunMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create_table.sql": {Data: []byte("CREATE TABLE t (name TEXT);\nINSERT INTO t (name) VALUES ('a');")},
	}
	manager := NewManager(NewFileScanner(files, "."), NewSQLiteExecutor(db), nil)

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected migration to run once, got %d rows", count)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "001" || status.PendingCount != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE ok (x TEXT);\nINSERT INTO missing (x) VALUES (1);")},
	}
	manager := NewManager(NewFileScanner(files, "."), NewSQLiteExecutor(db), nil)

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='ok'").Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected table creation to be rolled back, got %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.PendingCount != 1 {
		t.Fatalf("expected failed migration to remain pending, got %d", status.PendingCount)
	}
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create_table.sql": {Data: []byte("CREATE TABLE t (name TEXT);")},
	}
	if err := NewManager(NewFileScanner(files, "."), NewSQLiteExecutor(db), nil).RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	files["001_create_table.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE t (name TEXT, age INTEGER);")}
	_, err := NewManager(NewFileScanner(files, "."), NewSQLiteExecutor(db), nil).Status(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}
