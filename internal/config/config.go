// Package config loads service settings from ACCESSIONREPORT_* environment
// variables.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"accessionreport/internal/blob"
	"accessionreport/pkg/sqlquery"
)

// Prefix is prepended to every variable name.
const Prefix = "ACCESSIONREPORT_"

// Database selects the ArchivesSpace database the report reads.
type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `env:"DSN" envDefault:"accessions.db"`
}

// Report tunes how the accessions report reads derived columns.
type Report struct {
	StoredFunctions bool   `env:"STORED_FUNCTIONS"`
	EnumFunction    string `env:"ENUM_FUNCTION"`
}

type Config struct {
	DB       Database    `envPrefix:"DB_"`
	Report   Report      `envPrefix:"REPORT_"`
	Blob     blob.Config `envPrefix:"BLOB_"`
	RepoID   int64       `env:"REPO_ID"`
	HTTPAddr string      `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string      `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if _, err := sqlquery.ParseDialect(c.DB.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.RepoID < 0 {
		errs = append(errs, fmt.Errorf("repo id must not be negative, got %d", c.RepoID))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob s3 driver requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	return errors.Join(errs...)
}

// Dialect returns the SQL dialect of the configured driver.
func (c Config) Dialect() sqlquery.Dialect {
	d, err := sqlquery.ParseDialect(c.DB.Driver)
	if err != nil {
		return sqlquery.SQLite
	}
	return d
}

// Logger builds a production zap logger at the configured level. verbose
// forces debug.
func (c Config) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
