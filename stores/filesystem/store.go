package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// URLPrefix is the route under which stored images are served.
const URLPrefix = "/images/"

type fsStore struct {
	basePath  string
	publicURL string
}

// NewStore creates a filesystem image store rooted at basePath. Returned URLs
// are publicURL + URLPrefix + key.
func NewStore(basePath, publicURL string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *fsStore) Upload(ctx context.Context, img *core.Image) (string, error) {
	key := ulid.Make().String() + img.Extension()
	filePath := filepath.Join(s.basePath, key)
	log := logrus.WithFields(logrus.Fields{
		"key":       key,
		"file_path": filePath,
		"bytes":     len(img.Data),
	})

	if err := os.WriteFile(filePath, img.Data, 0644); err != nil {
		log.WithError(err).Error("Failed to store image")
		return "", fmt.Errorf("%w: failed to store image: %v", core.ErrUpstream, err)
	}

	log.Info("Image stored successfully")
	return s.publicURL + URLPrefix + key, nil
}

func (s *fsStore) Delete(ctx context.Context, imageURL string) error {
	key, err := s.keyFromURL(imageURL)
	if err != nil {
		return err
	}
	filePath := filepath.Join(s.basePath, key)
	log := logrus.WithField("file_path", filePath)

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Image not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete image")
		return err
	}

	log.Info("Image deleted successfully")
	return nil
}

func (s *fsStore) keyFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", imageURL, err)
	}
	if !strings.HasPrefix(u.Path, URLPrefix) {
		return "", fmt.Errorf("image url %q is not served by this store", imageURL)
	}
	key := strings.TrimPrefix(u.Path, URLPrefix)
	// Keys are flat file names; anything else could escape basePath.
	if key == "" || path.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	return key, nil
}
