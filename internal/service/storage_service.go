package service

import (
	"context"
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/pkg/logger"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider signs download URLs for resources.
type StorageProvider interface {
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// MinioStorageProvider presigns GET URLs against MinIO.
type MinioStorageProvider struct {
	Client *minio.Client
	Bucket string
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Client: client, Bucket: cfg.MinioBucket}, nil
}

func (p *MinioStorageProvider) PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := p.Client.PresignedGetObject(ctx, p.Bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

var ErrStorageDisabled = errors.New("object storage is not configured")

type StorageService struct {
	provider StorageProvider
	expiry   time.Duration
}

// NewStorageService returns a service without a provider when storage.type
// is not "minio"; PresignedURL then reports ErrStorageDisabled.
func NewStorageService(cfg *config.Config) *StorageService {
	expiry := time.Duration(cfg.Storage.PresignMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	s := &StorageService{expiry: expiry}

	switch cfg.Storage.Type {
	case "minio":
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("Failed to initialize MinIO storage", zap.Error(err))
			return s
		}
		s.provider = p
	default:
		logger.Log.Info("Object storage disabled", zap.String("type", cfg.Storage.Type))
	}
	return s
}

func NewStorageServiceWithProvider(p StorageProvider, expiry time.Duration) *StorageService {
	return &StorageService{provider: p, expiry: expiry}
}

func (s *StorageService) Enabled() bool {
	return s != nil && s.provider != nil
}

func (s *StorageService) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	if !s.Enabled() {
		return "", ErrStorageDisabled
	}
	u, err := s.provider.PresignedGetURL(ctx, objectKey, s.expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u, nil
}
