package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPGX    = "pgx"    // pgxpool, supports a read replica
	DriverSQL    = "sql"    // database/sql with lib/pq
	DriverSQLX   = "sqlx"   // sqlx with lib/pq
	DriverSQLite = "sqlite" // database/sql with mattn/go-sqlite3
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

const envPrefix = "LIBRARY_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete libraryd configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Lending   LendingConfig   `yaml:"lending"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	ReplicaDSN string `yaml:"replica_dsn"`
	MaxConns   int    `yaml:"max_conns"`
}

// RedisConfig configures the library summary cache. An empty Addr disables it.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

type LendingConfig struct {
	RetryMaxAttempts  int           `yaml:"retry_max_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	UnitOfWorkTimeout time.Duration `yaml:"unit_of_work_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig switches the OpenTelemetry adapters on.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing else is given:
// a local sqlite file, no cache, one retry.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   DriverSQLite,
			DSN:      "file:library.db?_busy_timeout=5000&_txlock=immediate&_foreign_keys=1",
			MaxConns: 8,
		},
		Redis: RedisConfig{
			SummaryTTL: 30 * time.Second,
		},
		Lending: LendingConfig{
			RetryMaxAttempts:  2,
			RetryBaseDelay:    10 * time.Millisecond,
			UnitOfWorkTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "libraryd",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path (skipped when
// path is empty) and the LIBRARY_* environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}

		if err = yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.string("HTTP_ADDR", &c.HTTP.Addr)
	e.duration("HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)
	e.string("DB_DRIVER", &c.Database.Driver)
	e.string("DB_DSN", &c.Database.DSN)
	e.string("DB_REPLICA_DSN", &c.Database.ReplicaDSN)
	e.int("DB_MAX_CONNS", &c.Database.MaxConns)
	e.string("REDIS_ADDR", &c.Redis.Addr)
	e.string("REDIS_PASSWORD", &c.Redis.Password)
	e.int("REDIS_DB", &c.Redis.DB)
	e.duration("SUMMARY_CACHE_TTL", &c.Redis.SummaryTTL)
	e.int("RETRY_MAX_ATTEMPTS", &c.Lending.RetryMaxAttempts)
	e.duration("RETRY_BASE_DELAY", &c.Lending.RetryBaseDelay)
	e.duration("UNIT_OF_WORK_TIMEOUT", &c.Lending.UnitOfWorkTimeout)
	e.string("LOG_LEVEL", &c.Log.Level)
	e.string("LOG_FORMAT", &c.Log.Format)
	e.bool("TELEMETRY_ENABLED", &c.Telemetry.Enabled)

	return errors.Join(e.errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.HTTP.Addr == "" {
		invalid("http.addr must not be empty")
	}

	if c.HTTP.ShutdownTimeout <= 0 {
		invalid("http.shutdown_timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverPGX, DriverSQL, DriverSQLX, DriverSQLite:
	default:
		invalid("database.driver %q is not one of pgx, sql, sqlx, sqlite", c.Database.Driver)
	}

	if c.Database.DSN == "" {
		invalid("database.dsn must not be empty")
	}

	if c.Database.ReplicaDSN != "" && c.Database.Driver != DriverPGX {
		invalid("database.replica_dsn needs the pgx driver")
	}

	if c.Database.MaxConns < 1 {
		invalid("database.max_conns must be at least 1")
	}

	if c.Redis.Addr != "" && c.Redis.SummaryTTL <= 0 {
		invalid("redis.summary_ttl must be positive")
	}

	if c.Lending.RetryMaxAttempts < 1 {
		invalid("lending.retry_max_attempts must be at least 1")
	}

	if c.Lending.RetryBaseDelay < 0 {
		invalid("lending.retry_base_delay must not be negative")
	}

	if c.Lending.UnitOfWorkTimeout <= 0 {
		invalid("lending.unit_of_work_timeout must be positive")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}

	switch c.Log.Format {
	case LogFormatJSON, LogFormatText:
	default:
		invalid("log.format %q is not one of json, text", c.Log.Format)
	}

	return errors.Join(errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) value(name string) (string, bool) {
	raw, ok := e.lookup(envPrefix + name)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(raw), true
}

func (e *envReader) string(name string, target *string) {
	if raw, ok := e.value(name); ok {
		*target = raw
	}
}

func (e *envReader) int(name string, target *int) {
	raw, ok := e.value(name)
	if !ok {
		return
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, envPrefix, name, err))
		return
	}

	*target = v
}

func (e *envReader) duration(name string, target *time.Duration) {
	raw, ok := e.value(name)
	if !ok {
		return
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, envPrefix, name, err))
		return
	}

	*target = v
}

func (e *envReader) bool(name string, target *bool) {
	raw, ok := e.value(name)
	if !ok {
		return
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, envPrefix, name, err))
		return
	}

	*target = v
}
