package config

import (
	"github.com/m-mizutani/shikigami/pkg/catalog"
	"github.com/urfave/cli/v3"
)

// Catalog selects the agent definitions to load
type Catalog struct {
	Path string
}

// Flags returns CLI flags for catalog configuration
func (c *Catalog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Path to an agent catalog YAML file (default: compiled-in catalog)",
			Sources:     cli.EnvVars("SHIKIGAMI_CATALOG"),
			Destination: &c.Path,
		},
	}
}

// Load returns the catalog from Path, or the compiled-in one when unset
func (c *Catalog) Load() (*catalog.Catalog, error) {
	if c.Path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(c.Path)
}
