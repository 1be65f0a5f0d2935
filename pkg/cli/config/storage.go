package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/adapters/cs"
	"github.com/m-mizutani/shikigami/pkg/adapters/fs"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Storage contains configuration for the transcript archive
type Storage struct {
	// Cloud Storage configuration
	Bucket string
	Prefix string

	// File System storage configuration
	FSPath string
}

// Flags returns CLI flags for Storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cloud-storage-bucket",
			Category:    "storage",
			Sources:     cli.EnvVars("SHIKIGAMI_CLOUD_STORAGE_BUCKET"),
			Usage:       "Cloud Storage bucket for transcripts",
			Destination: &s.Bucket,
		},
		&cli.StringFlag{
			Name:        "cloud-storage-prefix",
			Category:    "storage",
			Sources:     cli.EnvVars("SHIKIGAMI_CLOUD_STORAGE_PREFIX"),
			Usage:       "Prefix for Cloud Storage objects",
			Destination: &s.Prefix,
		},
		&cli.StringFlag{
			Name:        "file-storage-path",
			Category:    "storage",
			Usage:       "Directory for file system transcript storage",
			Sources:     cli.EnvVars("SHIKIGAMI_FILE_STORAGE_PATH"),
			Destination: &s.FSPath,
		},
	}
}

// IsEnabled reports whether any storage backend is configured. Without one
// transcripts are not archived.
func (s *Storage) IsEnabled() bool {
	return s.Bucket != "" || s.FSPath != ""
}

// HasCloudStorage returns true if cloud storage is configured
func (s *Storage) HasCloudStorage() bool {
	return s.Bucket != ""
}

// CreateAdapter creates appropriate storage adapter based on configuration.
// Cloud Storage wins when both backends are set.
func (s *Storage) CreateAdapter(ctx context.Context) (interfaces.StorageAdapter, func(), error) {
	switch {
	case s.HasCloudStorage():
		opts := []cs.Option{}
		if s.Prefix != "" {
			opts = append(opts, cs.WithPrefix(s.Prefix))
		}

		csClient, err := cs.New(ctx, s.Bucket, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create Cloud Storage client")
		}
		return csClient, func() { safe.Close(ctx, csClient) }, nil

	case s.FSPath != "":
		fsClient, err := fs.New(&fs.Config{BaseDirectory: s.FSPath})
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create file system storage adapter")
		}
		return fsClient, func() {}, nil

	default:
		return nil, nil, goerr.New("no storage backend configured: use --cloud-storage-bucket or --file-storage-path")
	}
}
