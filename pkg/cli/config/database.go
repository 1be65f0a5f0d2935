package config

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/repository/database/firestore"
	"github.com/m-mizutani/shikigami/pkg/repository/database/memory"
	"github.com/m-mizutani/shikigami/pkg/repository/database/sqlite"
	"github.com/m-mizutani/shikigami/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

const (
	DatabaseMemory    = "memory"
	DatabaseFirestore = "firestore"
	DatabaseSQLite    = "sqlite"
)

// Database selects and configures the durable store
type Database struct {
	Backend   string
	Firestore Firestore
	SQLite    SQLite
}

// Flags returns CLI flags for database configuration
func (d *Database) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "database",
			Category:    "database",
			Aliases:     []string{"d"},
			Usage:       "Database backend [memory|firestore|sqlite]",
			Sources:     cli.EnvVars("SHIKIGAMI_DATABASE"),
			Value:       DatabaseSQLite,
			Destination: &d.Backend,
		},
	}
	flags = append(flags, d.Firestore.Flags()...)
	flags = append(flags, d.SQLite.Flags()...)
	return flags
}

// LogValue returns the database configuration as a slog.Value for logging
func (d Database) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", d.Backend),
		slog.String("firestore_project_id", d.Firestore.ProjectID),
		slog.String("firestore_database_id", d.Firestore.DatabaseID),
		slog.String("sqlite_path", d.SQLite.Path),
	)
}

// NewRepository opens the configured store. The cleanup function releases it.
func (d *Database) NewRepository(ctx context.Context) (interfaces.Repository, func(), error) {
	switch strings.ToLower(d.Backend) {
	case DatabaseMemory:
		ctxlog.From(ctx).Warn("using in-memory database, nothing is persisted")
		return memory.New(), func() {}, nil

	case DatabaseFirestore:
		d.Firestore.SetDefaults()
		if !d.Firestore.IsValid() {
			return nil, nil, goerr.New("firestore backend requires --firestore-project-id")
		}
		client, err := firestore.New(ctx, d.Firestore.ProjectID, d.Firestore.DatabaseID)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create Firestore client")
		}
		return client, func() { safe.Close(ctx, client) }, nil

	case DatabaseSQLite:
		if d.SQLite.Path == "" {
			return nil, nil, goerr.New("sqlite backend requires --sqlite-path")
		}
		client, err := sqlite.New(ctx, d.SQLite.Path)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to open SQLite database")
		}
		return client, func() { safe.Close(ctx, client) }, nil

	default:
		return nil, nil, goerr.New("unknown database backend",
			goerr.V("backend", d.Backend),
			goerr.V("valid_backends", []string{DatabaseMemory, DatabaseFirestore, DatabaseSQLite}))
	}
}
