// Package catalog holds the compiled-in agent definitions.
package catalog

import (
	_ "embed"
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"gopkg.in/yaml.v3"
)

//go:embed agents.yaml
var defaultAgentsYAML []byte

// Catalog is an immutable set of agent definitions keyed by agent ID
type Catalog struct {
	agents map[string]*agent.Definition
}

type catalogFile struct {
	Agents []*agent.Definition `yaml:"agents"`
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Load(defaultAgentsYAML)
}

// LoadFile reads a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", path))
	}
	c, err := Load(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load catalog file", goerr.V("path", path))
	}
	return c, nil
}

// Load parses and validates a YAML catalog
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse agent catalog")
	}

	c := &Catalog{agents: make(map[string]*agent.Definition, len(file.Agents))}
	for _, def := range file.Agents {
		if def == nil {
			continue
		}
		if err := def.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid agent in catalog", goerr.TV(apperr.AgentIDKey, def.ID))
		}
		if _, dup := c.agents[def.ID]; dup {
			return nil, goerr.New("duplicate agent in catalog", goerr.TV(apperr.AgentIDKey, def.ID))
		}
		c.agents[def.ID] = def
	}

	for _, def := range c.agents {
		for _, dep := range def.Dependencies {
			if _, ok := c.agents[dep]; !ok {
				return nil, goerr.New("agent depends on unknown agent",
					goerr.TV(apperr.AgentIDKey, def.ID), goerr.V("dependency", dep))
			}
		}
	}

	return c, nil
}

// Get returns a copy of the definition of agentID
func (c *Catalog) Get(agentID string) (*agent.Definition, error) {
	def, ok := c.agents[agentID]
	if !ok {
		return nil, goerr.Wrap(apperr.ErrAgentNotFound, "agent is not in catalog",
			goerr.TV(apperr.AgentIDKey, agentID))
	}
	return def.Clone(), nil
}

// List returns copies of every definition ordered by ID
func (c *Catalog) List() []*agent.Definition {
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	defs := make([]*agent.Definition, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, c.agents[id].Clone())
	}
	return defs
}
