package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
)

// Client keeps objects in process memory
type Client struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

var _ interfaces.StorageAdapter = (*Client)(nil)

// New creates an empty in-memory object store
func New() *Client {
	return &Client{
		objects: make(map[string][]byte),
	}
}

// Put stores a private copy of data under key
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.objects[key] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the object stored under key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.objects[key]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrStorageKeyNotFound, "object not found", goerr.V("key", key))
	}
	return append([]byte(nil), data...), nil
}

// List returns keys beginning with prefix
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for key := range c.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
