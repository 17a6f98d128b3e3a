package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"ATTENDANCE_HTTP_PORT",
	"ATTENDANCE_STORE_BACKEND",
	"ATTENDANCE_SQLITE_PATH",
	"ATTENDANCE_RUN_MIGRATIONS",
	"ATTENDANCE_OTLP_ENDPOINT",
	"ATTENDANCE_LOG_LEVEL",
	"ATTENDANCE_SHUTDOWN_TIMEOUT",
	"ATTENDANCE_BOOTSTRAP_ADMIN_ID",
	"ATTENDANCE_BOOTSTRAP_ADMIN_EMAIL",
}

func unsetAll(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		// Register restoration first, then clear for this test.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unsetAll(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.StoreBackend != BackendMemory {
			t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
		}
		if !cfg.RunMigrations {
			t.Fatal("expected migrations to run by default")
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected INFO log level, got %s", cfg.LogLevel)
		}
		if cfg.ShutdownTimeout != 10*time.Second {
			t.Fatalf("expected 10s shutdown timeout, got %s", cfg.ShutdownTimeout)
		}
		if cfg.OTLPEndpoint != "" {
			t.Fatalf("expected tracing disabled by default, got %q", cfg.OTLPEndpoint)
		}
	})

	t.Run("errors when sqlite path is missing", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("ATTENDANCE_STORE_BACKEND", "sqlite")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: ATTENDANCE_SQLITE_PATH"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		unsetAll(t)
		t.Setenv("ATTENDANCE_HTTP_PORT", "9090")
		t.Setenv("ATTENDANCE_STORE_BACKEND", "SQLite")
		t.Setenv("ATTENDANCE_SQLITE_PATH", " /tmp/attendance.db ")
		t.Setenv("ATTENDANCE_RUN_MIGRATIONS", "false")
		t.Setenv("ATTENDANCE_OTLP_ENDPOINT", "http://localhost:4318")
		t.Setenv("ATTENDANCE_LOG_LEVEL", "debug")
		t.Setenv("ATTENDANCE_SHUTDOWN_TIMEOUT", "30s")
		t.Setenv("ATTENDANCE_BOOTSTRAP_ADMIN_ID", "root")
		t.Setenv("ATTENDANCE_BOOTSTRAP_ADMIN_EMAIL", "root@example.com")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		want := Config{
			HTTPPort:        9090,
			StoreBackend:    BackendSQLite,
			SQLitePath:      "/tmp/attendance.db",
			RunMigrations:   false,
			OTLPEndpoint:    "http://localhost:4318",
			LogLevel:        slog.LevelDebug,
			ShutdownTimeout: 30 * time.Second,

			BootstrapAdminID:    "root",
			BootstrapAdminEmail: "root@example.com",
		}
		if cfg != want {
			t.Fatalf("expected %+v, got %+v", want, cfg)
		}
	})
}

func TestLoadFrom_BootstrapAdminNeedsBothFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(map[string]string{"ATTENDANCE_BOOTSTRAP_ADMIN_ID": "root"})
	if err == nil {
		t.Fatal("expected error")
	}
	expected := "必須の環境変数が設定されていません: ATTENDANCE_BOOTSTRAP_ADMIN_EMAIL"
	if err.Error() != expected {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{name: "non numeric port", env: map[string]string{"ATTENDANCE_HTTP_PORT": "abc"}, wantKey: "ATTENDANCE_HTTP_PORT"},
		{name: "port out of range", env: map[string]string{"ATTENDANCE_HTTP_PORT": "70000"}, wantKey: "ATTENDANCE_HTTP_PORT"},
		{name: "unknown backend", env: map[string]string{"ATTENDANCE_STORE_BACKEND": "postgres"}, wantKey: "ATTENDANCE_STORE_BACKEND"},
		{name: "bad duration", env: map[string]string{"ATTENDANCE_SHUTDOWN_TIMEOUT": "soon"}, wantKey: "ATTENDANCE_SHUTDOWN_TIMEOUT"},
		{name: "bad log level", env: map[string]string{"ATTENDANCE_LOG_LEVEL": "loud"}, wantKey: "ATTENDANCE_LOG_LEVEL"},
		{name: "bad bool", env: map[string]string{"ATTENDANCE_RUN_MIGRATIONS": "maybe"}, wantKey: "ATTENDANCE_RUN_MIGRATIONS"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFrom(tc.env)
			if err == nil {
				t.Fatalf("expected error for %v", tc.env)
			}
			if !strings.HasPrefix(err.Error(), "環境変数の値が不正です: ") {
				t.Fatalf("unexpected error message: %q", err.Error())
			}
			if !strings.Contains(err.Error(), tc.wantKey) {
				t.Fatalf("expected %s to be reported, got %q", tc.wantKey, err.Error())
			}
		})
	}
}

func TestLoadFrom_ReportsEveryInvalidKey(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(map[string]string{
		"ATTENDANCE_HTTP_PORT":     "-1",
		"ATTENDANCE_STORE_BACKEND": "redis",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	expected := "環境変数の値が不正です: ATTENDANCE_HTTP_PORT, ATTENDANCE_STORE_BACKEND"
	if err.Error() != expected {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}
