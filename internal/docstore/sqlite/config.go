package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds SQLite connection settings for the document store.
type Config struct {
	// DSN is the database file path. A "file:" URI with its own query is
	// used as given apart from the pragmas appended below.
	DSN string
	// BusyTimeout sets how long to wait for database locks
	BusyTimeout time.Duration
	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF)
	Synchronous string
	// MaxOpenConns sets the maximum number of open connections
	MaxOpenConns int
	// MaxIdleConns sets the maximum number of idle connections
	MaxIdleConns int
	// ConnMaxLifetime sets the maximum lifetime of connections
	ConnMaxLifetime time.Duration
	// Retry tunes retries of writes that hit a locked database.
	Retry RetryConfig
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig(databasePath string) Config {
	return Config{
		DSN:             databasePath,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 5 * time.Minute,
		Retry:           DefaultRetryConfig(),
	}
}

var (
	validJournalModes = map[string]bool{
		"DELETE":   true,
		"TRUNCATE": true,
		"PERSIST":  true,
		"MEMORY":   true,
		"WAL":      true,
		"OFF":      true,
	}
	validSyncModes = map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
)

// Validate checks the configuration before a connection is opened.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.DSN == ":memory:" {
		return fmt.Errorf("in-memory SQLite is not supported; use the memory backend")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[c.JournalMode] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[c.Synchronous] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection limits cannot be negative")
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("ConnMaxLifetime cannot be negative")
	}
	return nil
}

// dataSourceName appends pragmas as _pragma query parameters so that every
// pooled connection gets them, and asks for immediate write transactions.
func (c Config) dataSourceName() string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	if c.JournalMode != "" {
		params = append(params, fmt.Sprintf("_pragma=journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		params = append(params, fmt.Sprintf("_pragma=synchronous(%s)", c.Synchronous))
	}

	dsn := c.DSN
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// filePath returns the on-disk location named by DSN.
func (c Config) filePath() string {
	p := strings.TrimPrefix(c.DSN, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// ensureDirectory creates the parent directory of the database file.
func (c Config) ensureDirectory() error {
	dir := filepath.Dir(c.filePath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
