package stores

import (
	"context"
	"fmt"

	"github.com/FREEWORLD-HUB/group1-advertisement/config"
	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/aws"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/filesystem"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/memory"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/mongo"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/postgres"
	"github.com/FREEWORLD-HUB/group1-advertisement/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all record store types.
type Store interface {
	core.AdvertStore
	core.UserStore
}

// OpenStore opens the record store selected by cfg.Type.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var store Store
	var err error

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "sqlite":
		storageField["dataSourceName"] = cfg.SQLitePath
		store, err = sqlite.NewStore(cfg.SQLitePath)
	case "mongo":
		storageField["database"] = cfg.MongoDatabase
		store, err = mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "postgres":
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
	case "memory", "":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

// OpenImageStore opens the image store selected by cfg.Type. serverURL is the
// fallback public base for filesystem URLs.
func OpenImageStore(ctx context.Context, cfg config.ImagesConfig, serverURL string) (core.ImageStore, error) {
	storageField := logrus.Fields{
		"imageStorageType": cfg.Type,
	}

	var store core.ImageStore
	switch cfg.Type {
	case "s3":
		storageField["bucketName"] = cfg.S3Bucket
		s3Store, err := aws.NewStore(ctx, aws.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PublicURL: cfg.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	case "filesystem", "":
		publicURL := cfg.PublicURL
		if publicURL == "" {
			publicURL = serverURL
		}
		storageField["basePath"] = cfg.LocalPath
		fsStore, err := filesystem.NewStore(cfg.LocalPath, publicURL)
		if err != nil {
			return nil, err
		}
		store = fsStore
	default:
		return nil, fmt.Errorf("unsupported image storage type %q", cfg.Type)
	}

	logrus.WithFields(storageField).Info("Use image storage")
	return store, nil
}
