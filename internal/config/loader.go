package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable read by Load.
const Prefix = "ATTENDANCE_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config captures environment driven configuration values for the attendance service.
type Config struct {
	HTTPPort        int           `env:"HTTP_PORT"        envDefault:"8080"`
	StoreBackend    string        `env:"STORE_BACKEND"    envDefault:"memory"`
	SQLitePath      string        `env:"SQLITE_PATH"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS"   envDefault:"true"`
	OTLPEndpoint    string        `env:"OTLP_ENDPOINT"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"        envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// BootstrapAdminID and BootstrapAdminEmail register an administrator at
	// startup when both are set and the user does not exist yet.
	BootstrapAdminID    string `env:"BOOTSTRAP_ADMIN_ID"`
	BootstrapAdminEmail string `env:"BOOTSTRAP_ADMIN_EMAIL"`
}

// Load parses configuration values from the current process environment.
//
// Defaults apply to optional fields. Missing and malformed values are
// collected and reported together with localized messages.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses configuration from the given variables instead of the
// process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		invalid = append(invalid, parseErrorKeys(err)...)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.SQLitePath = strings.TrimSpace(cfg.SQLitePath)

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = appendUnique(invalid, Prefix+"HTTP_PORT")
	}
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			missing = append(missing, Prefix+"SQLITE_PATH")
		}
	default:
		invalid = appendUnique(invalid, Prefix+"STORE_BACKEND")
	}
	cfg.BootstrapAdminID = strings.TrimSpace(cfg.BootstrapAdminID)
	cfg.BootstrapAdminEmail = strings.TrimSpace(cfg.BootstrapAdminEmail)
	switch {
	case cfg.BootstrapAdminID != "" && cfg.BootstrapAdminEmail == "":
		missing = append(missing, Prefix+"BOOTSTRAP_ADMIN_EMAIL")
	case cfg.BootstrapAdminID == "" && cfg.BootstrapAdminEmail != "":
		missing = append(missing, Prefix+"BOOTSTRAP_ADMIN_ID")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = appendUnique(invalid, Prefix+"SHUTDOWN_TIMEOUT")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseErrorKeys turns env parse failures into the variable names that caused them.
func parseErrorKeys(err error) []string {
	var aggregate env.AggregateError
	if !errors.As(err, &aggregate) {
		return []string{err.Error()}
	}

	keys := make([]string, 0, len(aggregate.Errors))
	for _, e := range aggregate.Errors {
		var parseErr env.ParseError
		if errors.As(e, &parseErr) {
			keys = appendUnique(keys, envKey(parseErr.Name))
			continue
		}
		keys = appendUnique(keys, e.Error())
	}
	return keys
}

func envKey(fieldName string) string {
	field, ok := reflect.TypeOf(Config{}).FieldByName(fieldName)
	if !ok {
		return fieldName
	}
	return Prefix + field.Tag.Get("env")
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
