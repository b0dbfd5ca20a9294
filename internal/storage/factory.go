package storage

import (
	"context"
	"fmt"

	"github.com/spec-kit/grievance-portal/internal/config"
)

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageLocal, "":
		basePath := cfg.LocalPath
		if basePath == "" {
			basePath = "./uploads"
		}
		return NewLocalStorage(basePath)
	case config.StorageS3:
		if cfg.Bucket == "" || cfg.Region == "" {
			return nil, fmt.Errorf("s3 storage requires STORAGE_BUCKET and STORAGE_REGION")
		}
		return NewS3Storage(ctx, cfg.Bucket, cfg.Region)
	case config.StorageMinio:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("minio storage requires STORAGE_ENDPOINT")
		}
		store, err := NewMinioStorage(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
