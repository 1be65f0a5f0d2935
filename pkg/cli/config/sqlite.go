package config

import "github.com/urfave/cli/v3"

// SQLite contains configuration for the embedded SQLite store
type SQLite struct {
	Path string
}

// Flags returns CLI flags for SQLite configuration
func (s *SQLite) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sqlite-path",
			Category:    "database",
			Usage:       "Path of the SQLite database file",
			Sources:     cli.EnvVars("SHIKIGAMI_SQLITE_PATH"),
			Value:       "shikigami.db",
			Destination: &s.Path,
		},
	}
}
