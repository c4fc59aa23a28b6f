package config

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	_ "github.com/lib/pq" // database/sql driver for the sql.DB and sqlx adapters
)

const envPrefix = "EVENTSTORE_POSTGRES_"

// PostgresConfig holds the connection settings for the Postgres engine adapters.
// Every field can be overridden with an EVENTSTORE_POSTGRES_* environment
// variable, for example EVENTSTORE_POSTGRES_HOST or EVENTSTORE_POSTGRES_MAX_CONNS.
type PostgresConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"sslmode"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// LoadPostgresConfig reads the Postgres settings from the environment,
// falling back to defaults that match the docker-compose setup.
func LoadPostgresConfig() (PostgresConfig, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"host":               "localhost",
		"port":               5432,
		"user":               "test",
		"password":           "test",
		"database":           "eventstore",
		"sslmode":            "disable",
		"max_conns":          50,
		"min_conns":          10,
		"max_conn_lifetime":  time.Hour,
		"max_conn_idle_time": time.Minute * 5,
		"connect_timeout":    time.Second * 5,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return PostgresConfig{}, fmt.Errorf("failed to set config default: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return PostgresConfig{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg PostgresConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return PostgresConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return PostgresConfig{}, err
	}

	return cfg, nil
}

func (c PostgresConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid postgres port %d", c.Port)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("postgres database name is required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be > 0")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns must be between 0 and max_conns")
	}

	return nil
}

// DSN renders the settings as a keyword/value connection string
// understood by both pgx and lib/pq.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PGXPoolConfig builds a pgxpool.Config with the pool limits applied.
func (c PostgresConfig) PGXPoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	poolConfig.MaxConnLifetime = c.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = c.ConnectTimeout

	return poolConfig, nil
}

// OpenSQLDB opens a database/sql connection via the lib/pq driver.
func (c PostgresConfig) OpenSQLDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sql.DB connection: %w", err)
	}

	db.SetMaxOpenConns(int(c.MaxConns))
	db.SetMaxIdleConns(int(c.MinConns))
	db.SetConnMaxLifetime(c.MaxConnLifetime)
	db.SetConnMaxIdleTime(c.MaxConnIdleTime)

	return db, nil
}

// OpenSQLX opens a sqlx connection via the lib/pq driver.
func (c PostgresConfig) OpenSQLX() (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlx connection: %w", err)
	}

	db.SetMaxOpenConns(int(c.MaxConns))
	db.SetMaxIdleConns(int(c.MinConns))
	db.SetConnMaxLifetime(c.MaxConnLifetime)
	db.SetConnMaxIdleTime(c.MaxConnIdleTime)

	return db, nil
}
