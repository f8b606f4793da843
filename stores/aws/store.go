package aws

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// s3API is the subset of *s3.Client used by the store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	s3Client  s3API
	bucket    string
	prefix    string
	publicURL string
}

type Options struct {
	Bucket   string
	Region   string
	Endpoint string // S3-compatible endpoint; enables path-style addressing.
	Prefix   string
	// PublicURL is the base of returned object URLs. Defaults to the bucket URL.
	PublicURL string
}

// NewStore creates a new S3-based image store.
func NewStore(ctx context.Context, opts Options) (*s3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := opts.PublicURL
	if publicURL == "" {
		switch {
		case opts.Endpoint != "":
			publicURL = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		default:
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, cfg.Region)
		}
	}
	return newStore(client, opts.Bucket, opts.Prefix, publicURL), nil
}

func newStore(client s3API, bucket, prefix, publicURL string) *s3Store {
	return &s3Store{
		s3Client:  client,
		bucket:    bucket,
		prefix:    prefix,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *s3Store) Upload(ctx context.Context, img *core.Image) (string, error) {
	key := s.prefix + ulid.Make().String() + img.Extension()
	log := logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "bytes": len(img.Data)})

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.DetectedContentType()),
	})
	if err != nil {
		log.WithError(err).Error("Failed to upload image")
		return "", fmt.Errorf("%w: failed to upload image: %v", core.ErrUpstream, err)
	}

	log.Info("Image uploaded successfully")
	return s.publicURL + "/" + key, nil
}

func (s *s3Store) Delete(ctx context.Context, imageURL string) error {
	key, err := s.keyFromURL(imageURL)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", key, err)
	}
	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Info("Image deleted successfully")
	return nil
}

func (s *s3Store) keyFromURL(imageURL string) (string, error) {
	if !strings.HasPrefix(imageURL, s.publicURL+"/") {
		return "", fmt.Errorf("image url %q is not served by this store", imageURL)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(imageURL, s.publicURL+"/"))
	if err != nil || key == "" {
		return "", fmt.Errorf("invalid image url %q", imageURL)
	}
	return key, nil
}
