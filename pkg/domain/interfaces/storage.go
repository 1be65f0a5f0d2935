package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// ErrStorageKeyNotFound is returned by StorageAdapter.Get for a missing object
var ErrStorageKeyNotFound = goerr.New("storage key not found",
	goerr.T(apperr.ErrTagNotFound)).ID("ERR_STORAGE_KEY_NOT_FOUND")

// StorageAdapter is a flat object store addressed by slash-separated keys
type StorageAdapter interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns keys beginning with prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}
