package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// ErrUnsafeKey is returned for keys that would escape the base directory
var ErrUnsafeKey = goerr.New("unsafe storage key", goerr.T(apperr.ErrTagValidation)).ID("ERR_UNSAFE_STORAGE_KEY")

// Client stores objects as files below a base directory. Writes go through a
// temporary file and a rename, so readers never see partial objects.
type Client struct {
	baseDir string
	dirMode os.FileMode
}

var _ interfaces.StorageAdapter = (*Client)(nil)

// New creates the base directory when needed and returns a client
func New(config *Config) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.BaseDirectory, config.Permissions); err != nil {
		return nil, goerr.Wrap(err, "failed to create base directory",
			goerr.T(apperr.ErrTagStorage), goerr.V("base_directory", config.BaseDirectory))
	}

	return &Client{
		baseDir: config.BaseDirectory,
		dirMode: config.Permissions,
	}, nil
}

// Put writes data to key
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	path, err := c.resolve(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirMode); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write object", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close object", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}

	if err := os.Rename(tmpName, path); err != nil {
		return goerr.Wrap(err, "failed to commit object", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}
	return nil
}

// Get reads the object stored at key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := c.resolve(key)
	if err != nil {
		return nil, err
	}

	// #nosec G304 - path is confined to baseDir by resolve
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(interfaces.ErrStorageKeyNotFound, "object not found", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.T(apperr.ErrTagStorage), goerr.V("key", key))
	}
	return data, nil
}

// List walks the base directory and returns keys beginning with prefix
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(c.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects", goerr.T(apperr.ErrTagStorage), goerr.V("prefix", prefix))
	}

	sort.Strings(keys)
	return keys, nil
}

// resolve maps key to a path under baseDir and rejects traversal
func (c *Client) resolve(key string) (string, error) {
	if key == "" {
		return "", goerr.Wrap(ErrUnsafeKey, "key cannot be empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", goerr.Wrap(ErrUnsafeKey, "key must be relative", goerr.V("key", key))
	}
	for _, r := range key {
		if r < 32 || r == 127 {
			return "", goerr.Wrap(ErrUnsafeKey, "key contains control characters", goerr.V("key", key))
		}
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", goerr.Wrap(ErrUnsafeKey, "key contains an invalid segment", goerr.V("key", key))
		}
	}

	return filepath.Join(c.baseDir, filepath.FromSlash(key)), nil
}
