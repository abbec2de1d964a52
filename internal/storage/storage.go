// Package storage presigns direct uploads of template images to an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sendcertificates/server/internal/config"
)

// PresignExpiry is the validity of a presigned upload URL.
const PresignExpiry = 15 * time.Minute

// ErrDisabled indicates object storage is not configured.
var ErrDisabled = errors.New("storage: object storage not configured")

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ErrUnsupportedContentType indicates an image type that cannot be used as a template.
var ErrUnsupportedContentType = errors.New("storage: unsupported content type")

// Upload describes a presigned upload.
type Upload struct {
	Key       string
	UploadURL string
	PublicURL string
	ExpiresAt time.Time
}

// Presigner issues presigned PUT URLs.
type Presigner struct {
	cfg    config.StorageConfig
	client *s3.PresignClient
	nowFn  func() time.Time
}

// NewPresigner builds a presigner from static credentials. It returns
// ErrDisabled when the config is incomplete.
func NewPresigner(ctx context.Context, cfg config.StorageConfig) (*Presigner, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{cfg: cfg, client: s3.NewPresignClient(client), nowFn: time.Now}, nil
}

// ObjectKey returns a fresh storage key for a template image owned by userID.
func ObjectKey(userID, contentType string) (string, error) {
	ext, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedContentType
	}
	return path.Join("templates", userID, uuid.NewString()+ext), nil
}

// PresignTemplateUpload returns a presigned PUT for a new template image.
func (p *Presigner) PresignTemplateUpload(ctx context.Context, userID, contentType string) (Upload, error) {
	if p == nil || p.client == nil {
		return Upload{}, ErrDisabled
	}
	key, errKey := ObjectKey(userID, contentType)
	if errKey != nil {
		return Upload{}, errKey
	}
	req, errPresign := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(PresignExpiry))
	if errPresign != nil {
		return Upload{}, fmt.Errorf("storage: presign put: %w", errPresign)
	}
	return Upload{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: p.PublicURL(key),
		ExpiresAt: p.nowFn().UTC().Add(PresignExpiry),
	}, nil
}

// PublicURL returns the URL the stored object is served from.
func (p *Presigner) PublicURL(key string) string {
	base := p.cfg.PublicURL
	if base == "" {
		endpoint := strings.TrimSuffix(p.cfg.Endpoint, "/")
		if endpoint == "" {
			endpoint = "https://s3." + p.cfg.Region + ".amazonaws.com"
		}
		base = endpoint + "/" + p.cfg.Bucket
	}
	return base + "/" + key
}
