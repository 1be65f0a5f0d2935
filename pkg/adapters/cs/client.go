package cs

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/api/iterator"
)

// Client stores objects in a Cloud Storage bucket
type Client struct {
	client      *storage.Client
	bucket      string
	prefix      string
	contentType string
}

var _ interfaces.StorageAdapter = (*Client)(nil)

// Option configures Client
type Option func(*Client)

// WithPrefix places every object below prefix in the bucket
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		c.prefix = prefix
	}
}

// WithContentType sets the Content-Type of written objects
func WithContentType(contentType string) Option {
	return func(c *Client) {
		c.contentType = contentType
	}
}

// New creates a Cloud Storage client using Application Default Credentials
func New(ctx context.Context, bucket string, opts ...Option) (*Client, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required", goerr.T(apperr.ErrTagValidation))
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client",
			goerr.T(apperr.ErrTagStorage), goerr.V("bucket", bucket))
	}

	c := &Client{
		client:      client,
		bucket:      bucket,
		contentType: "application/gzip",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) objectName(key string) string {
	return c.prefix + key
}

// Put uploads data to key
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	name := c.objectName(key)
	w := c.client.Bucket(c.bucket).Object(name).NewWriter(ctx)
	w.ContentType = c.contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload object",
			goerr.T(apperr.ErrTagStorage), goerr.V("bucket", c.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish upload",
			goerr.T(apperr.ErrTagStorage), goerr.V("bucket", c.bucket), goerr.V("object", name))
	}
	return nil
}

// Get downloads the object stored at key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	name := c.objectName(key)
	r, err := c.client.Bucket(c.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(interfaces.ErrStorageKeyNotFound, "object not found",
			goerr.V("bucket", c.bucket), goerr.V("object", name))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object",
			goerr.T(apperr.ErrTagStorage), goerr.V("bucket", c.bucket), goerr.V("object", name))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download object",
			goerr.T(apperr.ErrTagStorage), goerr.V("bucket", c.bucket), goerr.V("object", name))
	}
	return data, nil
}

// List returns keys beginning with prefix, relative to the client prefix
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: c.objectName(prefix)})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects",
				goerr.T(apperr.ErrTagStorage), goerr.V("bucket", c.bucket), goerr.V("prefix", prefix))
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, c.prefix))
	}
	return keys, nil
}
