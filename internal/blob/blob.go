// Package blob is the entry point for export artifact storage. It re-exports
// the core abstractions and selects a backend from configuration; callers
// outside this package depend on blob.Store only.
package blob

import (
	"context"
	"fmt"

	"sampleregistry/internal/blob/core"
	"sampleregistry/internal/config"
	fsblob "sampleregistry/internal/infra/blob/fs"
	memblob "sampleregistry/internal/infra/blob/memory"
	s3blob "sampleregistry/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory

	// ContentTypeTSV is attached to published mapping files.
	ContentTypeTSV = core.ContentTypeTSV
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsblob.New(root) }

// NewMemory returns an in-memory store.
func NewMemory() Store { return memblob.New() }

// NewS3 returns an S3-backed store.
func NewS3(ctx context.Context, cfg s3blob.Config) (Store, error) { return s3blob.New(ctx, cfg) }

// Open selects a Store implementation from cfg. An empty driver means fs.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, s3blob.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
