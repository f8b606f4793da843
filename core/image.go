package core

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

type (
	// Image is a raw image payload headed for the image store.
	Image struct {
		Data        []byte
		ContentType string
		Filename    string
	}

	// ImageStore is durable object storage returning public URLs.
	ImageStore interface {
		Upload(ctx context.Context, img *Image) (string, error)
		// Delete removes an object previously returned by Upload.
		Delete(ctx context.Context, url string) error
	}

	// ImageGenerator synthesizes n images from a text prompt.
	ImageGenerator interface {
		Generate(ctx context.Context, prompt string, n int) ([][]byte, error)
	}
)

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
}

// DetectedContentType returns ContentType, sniffing Data when it is empty or generic.
func (img *Image) DetectedContentType() string {
	ct := img.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(img.Data)
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

// Extension picks a file extension for the image, including the leading dot.
func (img *Image) Extension() string {
	if ext, ok := imageExtensions[img.DetectedContentType()]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(img.Filename)); ext != "" {
		return ext
	}
	return ".bin"
}
