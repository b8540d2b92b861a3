package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	pgdriver "github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/roivaz/prcohort/internal/config"
	dbmigrate "github.com/roivaz/prcohort/internal/db/migrate"
	"github.com/roivaz/prcohort/internal/db/migrations"
)

type Config struct {
	DSN         string
	Debug       bool
	AutoMigrate bool
}

type Database struct {
	bun *bun.DB
}

func NewDatabase(cfg Config) (*Database, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return &Database{bun: db}, nil
}

// Open connects, checks the server is reachable and that the schema is current,
// applying pending migrations when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg Config) (*Database, error) {
	database, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := dbmigrate.EnsureCurrent(ctx, database.Bun(), migrations.FS, cfg.AutoMigrate); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func (d *Database) Bun() *bun.DB {
	return d.bun
}

func (d *Database) Close() error {
	return d.bun.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.bun.PingContext(ctx)
}

// LoadConfig reads the connection settings from the process configuration.
func LoadConfig() Config {
	return Config{
		DSN:         config.PostgresURL(),
		Debug:       config.DBDebug(),
		AutoMigrate: config.AutoMigrate(),
	}
}
