package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/usecase"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/complaint-analyst/internal/infrastructure/storage/s3"
)

// NewIndexSync pairs the local index directory with the configured S3 bucket.
// createBucket makes the bucket first, for publishing.
func NewIndexSync(ctx context.Context, cfg config.Config, createBucket bool) (*usecase.IndexSync, error) {
	if cfg.IndexS3Endpoint == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "init index sync", errors.New("INDEX_S3_ENDPOINT is required"))
	}
	local, err := localfs.New(cfg.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("init local index storage: %w", err)
	}
	remote, err := s3.New(s3.Options{
		Endpoint:  cfg.IndexS3Endpoint,
		AccessKey: cfg.IndexS3AccessKey,
		SecretKey: cfg.IndexS3SecretKey,
		Bucket:    cfg.IndexS3Bucket,
		Prefix:    cfg.IndexS3Prefix,
		UseSSL:    cfg.IndexS3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init remote index storage: %w", err)
	}
	if createBucket {
		if err := remote.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return usecase.NewIndexSync(local, remote), nil
}

// PullIndex downloads the preferred generation the bucket holds into INDEX_DIR.
func PullIndex(ctx context.Context, cfg config.Config) (domain.IndexGeneration, error) {
	sync, err := NewIndexSync(ctx, cfg, false)
	if err != nil {
		return "", err
	}
	return sync.PullPreferred(ctx)
}
