package fs

import (
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

const defaultDirMode os.FileMode = 0o755

// Config is the filesystem adapter configuration
type Config struct {
	BaseDirectory string      `yaml:"base_directory"`
	Permissions   os.FileMode `yaml:"permissions,omitempty"`
}

// normalize resolves BaseDirectory and fills defaults
func (c *Config) normalize() error {
	if c.BaseDirectory == "" {
		return goerr.New("base directory is required", goerr.T(apperr.ErrTagValidation))
	}

	absPath, err := filepath.Abs(c.BaseDirectory)
	if err != nil {
		return goerr.Wrap(err, "invalid base directory",
			goerr.T(apperr.ErrTagValidation), goerr.V("base_directory", c.BaseDirectory))
	}
	c.BaseDirectory = absPath

	if c.Permissions == 0 {
		c.Permissions = defaultDirMode
	}
	return nil
}
